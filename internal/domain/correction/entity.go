package correction

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
)

// Request asks for the punches of one attendance record to be changed.
type Request struct {
	ID                 string
	EmployeeID         string
	AttendanceRecordID string
	WorkDate           time.Time
	OriginalClockIn    *time.Time
	OriginalClockOut   *time.Time
	RequestedClockIn   *time.Time
	RequestedClockOut  *time.Time
	Reason             string
	Status             approval.Status
	ManagerID          *string
	HRReviewerID       *string
	Escalated          bool
	EscalatedAt        *time.Time
	ManagerNote        *string
	ManagerDecidedAt   *time.Time
	HRNote             *string
	HRDecidedAt        *time.Time
	RejectionReason    *string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r *Request) Subject() approval.Subject {
	return approval.Subject{
		RequesterID: r.EmployeeID,
		ManagerID:   r.ManagerID,
		Status:      r.Status,
		Escalated:   r.Escalated,
	}
}
