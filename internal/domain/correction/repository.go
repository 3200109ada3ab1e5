package correction

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
)

type Filter struct {
	EmployeeID         *string
	ManagerID          *string
	AttendanceRecordID *string
	Statuses           []approval.Status
	Escalated          *bool
	WorkDateStart      *time.Time
	WorkDateEnd        *time.Time
	CreatedBefore      *time.Time
}

type Reader interface {
	GetByID(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, filter Filter) ([]Request, error)
}

type Repository interface {
	Reader
	Create(ctx context.Context, req *Request) error
	// UpdateStatus persists a decision only if the stored status still equals
	// expected; otherwise it returns approval.ErrConcurrentUpdate.
	UpdateStatus(ctx context.Context, req *Request, expected approval.Status) error
	// MarkEscalated flags a pending request; it reports false if the request
	// was already escalated or is no longer pending.
	MarkEscalated(ctx context.Context, id string, hrReviewerID *string, at time.Time) (bool, error)
}
