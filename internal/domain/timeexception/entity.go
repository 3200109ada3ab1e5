package timeexception

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
)

type Type string

const (
	TypeOvertime    Type = "overtime"
	TypePermission  Type = "permission"
	TypeMissedPunch Type = "missed_punch"
	TypeLateArrival Type = "late_arrival"
	TypeEarlyLeave  Type = "early_leave"
	TypeOther       Type = "other"
)

// RequestableTypes are the types an employee may submit; missed_punch is
// raised by the detector only.
func RequestableTypes() []string {
	return []string{
		string(TypeOvertime),
		string(TypePermission),
		string(TypeLateArrival),
		string(TypeEarlyLeave),
		string(TypeOther),
	}
}

type Exception struct {
	ID                 string
	EmployeeID         string
	ExceptionType      Type
	AttendanceRecordID *string
	OvertimeRuleID     *string
	PermissionRuleID   *string
	WorkDate           time.Time
	StartDateTime      time.Time
	EndDateTime        time.Time
	Reason             string
	MissingPunch       *attendance.MissingPunch
	Status             approval.Status
	ManagerID          *string
	HRReviewerID       *string
	PreApprovedAt      *time.Time
	PreApprovedBy      *string
	Escalated          bool
	EscalatedAt        *time.Time
	ForcedEscalation   bool
	ManagerNote        *string
	ManagerDecidedAt   *time.Time
	HRNote             *string
	HRDecidedAt        *time.Time
	RejectionReason    *string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (e *Exception) Subject() approval.Subject {
	return approval.Subject{
		RequesterID:  e.EmployeeID,
		ManagerID:    e.ManagerID,
		Status:       e.Status,
		Escalated:    e.Escalated,
		SystemRaised: e.ExceptionType == TypeMissedPunch,
	}
}

// DurationMinutes is the length of the requested window in whole minutes.
func (e *Exception) DurationMinutes() int {
	return int(e.EndDateTime.Sub(e.StartDateTime) / time.Minute)
}

// PreApprovedInTime reports whether a pre-approval marker was set no later
// than the start of the work it covers.
func (e *Exception) PreApprovedInTime() bool {
	return e.PreApprovedAt != nil && !e.PreApprovedAt.After(e.StartDateTime)
}
