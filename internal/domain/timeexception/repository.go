package timeexception

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
)

type Filter struct {
	EmployeeID         *string
	ManagerID          *string
	AttendanceRecordID *string
	AttendanceRecords  []string
	Types              []Type
	Statuses           []approval.Status
	Escalated          *bool
	WorkDateStart      *time.Time
	WorkDateEnd        *time.Time
	CreatedBefore      *time.Time
}

type Reader interface {
	GetByID(ctx context.Context, id string) (*Exception, error)
	List(ctx context.Context, filter Filter) ([]Exception, error)
}

type Repository interface {
	Reader
	Create(ctx context.Context, exc *Exception) error
	// FindByRecordAndType returns the exception of the given type raised for
	// a record in any status, or nil.
	FindByRecordAndType(ctx context.Context, recordID string, excType Type) (*Exception, error)
	// UpdateStatus persists a decision only if the stored status still equals
	// expected; otherwise it returns approval.ErrConcurrentUpdate.
	UpdateStatus(ctx context.Context, exc *Exception, expected approval.Status) error
	SetPreApproval(ctx context.Context, id, approverID string, at time.Time) error
	MarkEscalated(ctx context.Context, id string, hrReviewerID *string, forced bool, at time.Time) (bool, error)
}
