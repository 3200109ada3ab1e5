package correction

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

type CreateCorrectionRequest struct {
	AttendanceRecordID string     `json:"attendance_record_id"`
	RequestedClockIn   *time.Time `json:"requested_clock_in"`
	RequestedClockOut  *time.Time `json:"requested_clock_out"`
	Reason             string     `json:"reason"`
}

func (r *CreateCorrectionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.AttendanceRecordID) {
		errs.Add("attendance_record_id", "attendance_record_id is required")
	}
	if r.RequestedClockIn == nil && r.RequestedClockOut == nil {
		errs.Add("requested_clock_in", "at least one of requested_clock_in or requested_clock_out is required")
	}
	if r.RequestedClockIn != nil && r.RequestedClockOut != nil && !r.RequestedClockOut.After(*r.RequestedClockIn) {
		errs.Add("requested_clock_out", "requested_clock_out must be after requested_clock_in")
	}
	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "reason is required")
	} else if !validator.MaxLength(r.Reason, 1000) {
		errs.Add("reason", "reason must not exceed 1000 characters")
	}

	return errs.Err()
}

type DecisionRequest struct {
	Decision approval.Decision `json:"decision"`
	Note     *string           `json:"note"`
}

func (r *DecisionRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.Decision.IsValid() {
		errs.Add("decision", "decision must be approve or reject")
	}
	if r.Decision == approval.DecisionReject && (r.Note == nil || validator.IsEmpty(*r.Note)) {
		errs.Add("note", "a reason is required when rejecting")
	}

	return errs.Err()
}

type ListRequest struct {
	EmployeeID *string
	Status     *approval.Status
	Escalated  *bool
	StartDate  *string
	EndDate    *string
}

type Response struct {
	ID                 string          `json:"id"`
	EmployeeID         string          `json:"employee_id"`
	AttendanceRecordID string          `json:"attendance_record_id"`
	WorkDate           string          `json:"work_date"`
	OriginalClockIn    *time.Time      `json:"original_clock_in,omitempty"`
	OriginalClockOut   *time.Time      `json:"original_clock_out,omitempty"`
	RequestedClockIn   *time.Time      `json:"requested_clock_in,omitempty"`
	RequestedClockOut  *time.Time      `json:"requested_clock_out,omitempty"`
	Reason             string          `json:"reason"`
	Status             approval.Status `json:"status"`
	ManagerID          *string         `json:"manager_id,omitempty"`
	HRReviewerID       *string         `json:"hr_reviewer_id,omitempty"`
	Escalated          bool            `json:"escalated"`
	EscalatedAt        *time.Time      `json:"escalated_at,omitempty"`
	ManagerNote        *string         `json:"manager_note,omitempty"`
	HRNote             *string         `json:"hr_note,omitempty"`
	RejectionReason    *string         `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func NewResponse(r Request) Response {
	return Response{
		ID:                 r.ID,
		EmployeeID:         r.EmployeeID,
		AttendanceRecordID: r.AttendanceRecordID,
		WorkDate:           r.WorkDate.Format("2006-01-02"),
		OriginalClockIn:    r.OriginalClockIn,
		OriginalClockOut:   r.OriginalClockOut,
		RequestedClockIn:   r.RequestedClockIn,
		RequestedClockOut:  r.RequestedClockOut,
		Reason:             r.Reason,
		Status:             r.Status,
		ManagerID:          r.ManagerID,
		HRReviewerID:       r.HRReviewerID,
		Escalated:          r.Escalated,
		EscalatedAt:        r.EscalatedAt,
		ManagerNote:        r.ManagerNote,
		HRNote:             r.HRNote,
		RejectionReason:    r.RejectionReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func NewResponses(reqs []Request) []Response {
	out := make([]Response, len(reqs))
	for i, r := range reqs {
		out[i] = NewResponse(r)
	}
	return out
}
