package timeexception

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

type CreateTimeExceptionRequest struct {
	ExceptionType      Type      `json:"exception_type"`
	StartDateTime      time.Time `json:"start_date_time"`
	EndDateTime        time.Time `json:"end_date_time"`
	AttendanceRecordID *string   `json:"attendance_record_id"`
	OvertimeRuleID     *string   `json:"overtime_rule_id"`
	PermissionRuleID   *string   `json:"permission_rule_id"`
	Reason             string    `json:"reason"`
}

func (r *CreateTimeExceptionRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsInSlice(string(r.ExceptionType), RequestableTypes()) {
		errs.Add("exception_type", "exception_type must be overtime, permission, late_arrival, early_leave or other")
	}
	if r.StartDateTime.IsZero() {
		errs.Add("start_date_time", "start_date_time is required")
	}
	if r.EndDateTime.IsZero() {
		errs.Add("end_date_time", "end_date_time is required")
	} else if !r.EndDateTime.After(r.StartDateTime) {
		errs.Add("end_date_time", "end_date_time must be after start_date_time")
	}
	if r.ExceptionType == TypeOvertime && r.PermissionRuleID != nil {
		errs.Add("permission_rule_id", "permission_rule_id is not allowed for overtime")
	}
	if r.ExceptionType == TypePermission {
		if r.PermissionRuleID == nil || validator.IsEmpty(*r.PermissionRuleID) {
			errs.Add("permission_rule_id", "permission_rule_id is required for permission requests")
		}
		if r.OvertimeRuleID != nil {
			errs.Add("overtime_rule_id", "overtime_rule_id is not allowed for permission requests")
		}
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
	EmployeeID    *string
	ExceptionType *Type
	Status        *approval.Status
	Escalated     *bool
	StartDate     *string
	EndDate       *string
}

type Response struct {
	ID                 string                   `json:"id"`
	EmployeeID         string                   `json:"employee_id"`
	ExceptionType      Type                     `json:"exception_type"`
	AttendanceRecordID *string                  `json:"attendance_record_id,omitempty"`
	OvertimeRuleID     *string                  `json:"overtime_rule_id,omitempty"`
	PermissionRuleID   *string                  `json:"permission_rule_id,omitempty"`
	WorkDate           string                   `json:"work_date"`
	StartDateTime      time.Time                `json:"start_date_time"`
	EndDateTime        time.Time                `json:"end_date_time"`
	DurationMinutes    int                      `json:"duration_minutes"`
	Reason             string                   `json:"reason"`
	MissingPunch       *attendance.MissingPunch `json:"missing_punch,omitempty"`
	Status             approval.Status          `json:"status"`
	ManagerID          *string                  `json:"manager_id,omitempty"`
	HRReviewerID       *string                  `json:"hr_reviewer_id,omitempty"`
	PreApprovedAt      *time.Time               `json:"pre_approved_at,omitempty"`
	PreApprovedBy      *string                  `json:"pre_approved_by,omitempty"`
	Escalated          bool                     `json:"escalated"`
	EscalatedAt        *time.Time               `json:"escalated_at,omitempty"`
	ForcedEscalation   bool                     `json:"forced_escalation"`
	ManagerNote        *string                  `json:"manager_note,omitempty"`
	HRNote             *string                  `json:"hr_note,omitempty"`
	RejectionReason    *string                  `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func NewResponse(e Exception) Response {
	return Response{
		ID:                 e.ID,
		EmployeeID:         e.EmployeeID,
		ExceptionType:      e.ExceptionType,
		AttendanceRecordID: e.AttendanceRecordID,
		OvertimeRuleID:     e.OvertimeRuleID,
		PermissionRuleID:   e.PermissionRuleID,
		WorkDate:           e.WorkDate.Format("2006-01-02"),
		StartDateTime:      e.StartDateTime,
		EndDateTime:        e.EndDateTime,
		DurationMinutes:    e.DurationMinutes(),
		Reason:             e.Reason,
		MissingPunch:       e.MissingPunch,
		Status:             e.Status,
		ManagerID:          e.ManagerID,
		HRReviewerID:       e.HRReviewerID,
		PreApprovedAt:      e.PreApprovedAt,
		PreApprovedBy:      e.PreApprovedBy,
		Escalated:          e.Escalated,
		EscalatedAt:        e.EscalatedAt,
		ForcedEscalation:   e.ForcedEscalation,
		ManagerNote:        e.ManagerNote,
		HRNote:             e.HRNote,
		RejectionReason:    e.RejectionReason,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func NewResponses(excs []Exception) []Response {
	out := make([]Response, len(excs))
	for i, e := range excs {
		out[i] = NewResponse(e)
	}
	return out
}
