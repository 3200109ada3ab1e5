package timeconfig

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========================================
// SHIFT TYPE
// ========================================

type CreateShiftTypeRequest struct {
	Name               string         `json:"name"`
	StartTime          string         `json:"start_time"`
	EndTime            string         `json:"end_time"`
	GracePeriodMinutes int            `json:"grace_period_minutes"`
	BreakMinutes       int            `json:"break_minutes"`
	PunchMode          PunchMode      `json:"punch_mode"`
	Segments           []ShiftSegment `json:"segments"`
}

func (r *CreateShiftTypeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "name is required"})
	}
	if _, err := ParseClock(r.StartTime); err != nil {
		errs = append(errs, validator.ValidationError{Field: "start_time", Message: "start_time must be HH:MM"})
	}
	if _, err := ParseClock(r.EndTime); err != nil {
		errs = append(errs, validator.ValidationError{Field: "end_time", Message: "end_time must be HH:MM"})
	}
	if r.GracePeriodMinutes < 0 || r.GracePeriodMinutes > 240 {
		errs = append(errs, validator.ValidationError{Field: "grace_period_minutes", Message: "grace_period_minutes must be between 0 and 240"})
	}
	if r.BreakMinutes < 0 {
		errs = append(errs, validator.ValidationError{Field: "break_minutes", Message: "break_minutes must not be negative"})
	}
	if r.PunchMode == "" {
		r.PunchMode = PunchModeMultiple
	} else if !r.PunchMode.IsValid() {
		errs = append(errs, validator.ValidationError{Field: "punch_mode", Message: "punch_mode must be FIRST_LAST or MULTIPLE"})
	}
	for _, seg := range r.Segments {
		_, errStart := ParseClock(seg.StartTime)
		_, errEnd := ParseClock(seg.EndTime)
		if errStart != nil || errEnd != nil {
			errs = append(errs, validator.ValidationError{Field: "segments", Message: "segment times must be HH:MM"})
			break
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ShiftTypeResponse struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	StartTime          string         `json:"start_time"`
	EndTime            string         `json:"end_time"`
	GracePeriodMinutes int            `json:"grace_period_minutes"`
	BreakMinutes       int            `json:"break_minutes"`
	PunchMode          PunchMode      `json:"punch_mode"`
	Segments           []ShiftSegment `json:"segments,omitempty"`
	IsActive           bool           `json:"is_active"`
}

func NewShiftTypeResponse(s ShiftType) ShiftTypeResponse {
	return ShiftTypeResponse{
		ID:                 s.ID,
		Name:               s.Name,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		GracePeriodMinutes: s.GracePeriodMinutes,
		BreakMinutes:       s.BreakMinutes,
		PunchMode:          s.PunchMode,
		Segments:           s.Segments,
		IsActive:           s.IsActive,
	}
}

// ========================================
// SHIFT ASSIGNMENT
// ========================================

type CreateAssignmentRequest struct {
	ShiftTypeID      *string `json:"shift_type_id"`
	SchedulingRuleID *string `json:"scheduling_rule_id"`
	EmployeeID       *string `json:"employee_id"`
	DepartmentID     *string `json:"department_id"`
	PositionID       *string `json:"position_id"`
	StartDate        string  `json:"start_date"`
	EndDate          *string `json:"end_date"`
	Submit           bool    `json:"submit"`
}

func (r *CreateAssignmentRequest) Validate() error {
	var errs validator.ValidationErrors

	if (r.ShiftTypeID == nil) == (r.SchedulingRuleID == nil) {
		errs = append(errs, validator.ValidationError{Field: "shift_type_id", Message: "exactly one of shift_type_id or scheduling_rule_id is required"})
	}

	targets := 0
	for _, t := range []*string{r.EmployeeID, r.DepartmentID, r.PositionID} {
		if t != nil && !validator.IsEmpty(*t) {
			targets++
		}
	}
	if targets != 1 {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "exactly one of employee_id, department_id or position_id is required"})
	}

	start, ok := validator.IsValidDate(r.StartDate)
	if !ok {
		errs = append(errs, validator.ValidationError{Field: "start_date", Message: "start_date must be YYYY-MM-DD"})
	}
	if r.EndDate != nil {
		end, ok := validator.IsValidDate(*r.EndDate)
		if !ok {
			errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must be YYYY-MM-DD"})
		} else if end.Before(start) {
			errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must not be before start_date"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type AssignmentTransitionRequest struct {
	Status AssignmentStatus `json:"status"`
}

func (r *AssignmentTransitionRequest) Validate() error {
	switch r.Status {
	case AssignmentSubmitted, AssignmentApproved, AssignmentRejected, AssignmentCancelled:
		return nil
	}
	return validator.ValidationErrors{{Field: "status", Message: "status must be submitted, approved, rejected or cancelled"}}
}

type AssignmentResponse struct {
	ID               string           `json:"id"`
	ShiftTypeID      *string          `json:"shift_type_id,omitempty"`
	SchedulingRuleID *string          `json:"scheduling_rule_id,omitempty"`
	EmployeeID       *string          `json:"employee_id,omitempty"`
	DepartmentID     *string          `json:"department_id,omitempty"`
	PositionID       *string          `json:"position_id,omitempty"`
	StartDate        string           `json:"start_date"`
	EndDate          *string          `json:"end_date,omitempty"`
	Status           AssignmentStatus `json:"status"`
	ApprovedBy       *string          `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
}

func NewAssignmentResponse(a ShiftAssignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:               a.ID,
		ShiftTypeID:      a.ShiftTypeID,
		SchedulingRuleID: a.SchedulingRuleID,
		EmployeeID:       a.EmployeeID,
		DepartmentID:     a.DepartmentID,
		PositionID:       a.PositionID,
		StartDate:        a.StartDate.Format("2006-01-02"),
		Status:           a.Status,
		ApprovedBy:       a.ApprovedBy,
		ApprovedAt:       a.ApprovedAt,
	}
	if a.EndDate != nil {
		end := a.EndDate.Format("2006-01-02")
		resp.EndDate = &end
	}
	return resp
}

// ========================================
// RULES
// ========================================

type CreateSchedulingRuleRequest struct {
	Name           string          `json:"name"`
	WeeklyPattern  []WeeklyEntry   `json:"weekly_pattern"`
	MinWeeklyHours decimal.Decimal `json:"min_weekly_hours"`
	MaxWeeklyHours decimal.Decimal `json:"max_weekly_hours"`
}

func (r *CreateSchedulingRuleRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "name is required"})
	}
	if len(r.WeeklyPattern) == 0 {
		errs = append(errs, validator.ValidationError{Field: "weekly_pattern", Message: "weekly_pattern must not be empty"})
	}
	seen := make(map[time.Weekday]bool)
	for _, e := range r.WeeklyPattern {
		if e.Weekday < time.Sunday || e.Weekday > time.Saturday || seen[e.Weekday] {
			errs = append(errs, validator.ValidationError{Field: "weekly_pattern", Message: "weekly_pattern must list each weekday (0-6) at most once"})
			break
		}
		seen[e.Weekday] = true
	}
	if r.MinWeeklyHours.IsNegative() || r.MaxWeeklyHours.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "min_weekly_hours", Message: "weekly hours must not be negative"})
	} else if !r.MaxWeeklyHours.IsZero() && r.MinWeeklyHours.GreaterThan(r.MaxWeeklyHours) {
		errs = append(errs, validator.ValidationError{Field: "max_weekly_hours", Message: "max_weekly_hours must not be less than min_weekly_hours"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SchedulingRuleResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	WeeklyPattern  []WeeklyEntry   `json:"weekly_pattern"`
	MinWeeklyHours decimal.Decimal `json:"min_weekly_hours"`
	MaxWeeklyHours decimal.Decimal `json:"max_weekly_hours"`
}

func NewSchedulingRuleResponse(r SchedulingRule) SchedulingRuleResponse {
	return SchedulingRuleResponse{
		ID:             r.ID,
		Name:           r.Name,
		WeeklyPattern:  r.WeeklyPattern,
		MinWeeklyHours: r.MinWeeklyHours,
		MaxWeeklyHours: r.MaxWeeklyHours,
	}
}

type CreateOvertimeRuleRequest struct {
	Name                string          `json:"name"`
	Multiplier          decimal.Decimal `json:"multiplier"`
	ContextType         OvertimeContext `json:"context_type"`
	RequiresPreApproval bool            `json:"requires_pre_approval"`
}

func (r *CreateOvertimeRuleRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "name is required"})
	}
	if !r.Multiplier.GreaterThan(decimal.Zero) {
		errs = append(errs, validator.ValidationError{Field: "multiplier", Message: "multiplier must be greater than zero"})
	}
	if !validator.IsInSlice(string(r.ContextType), []string{string(OvertimeWeekday), string(OvertimeWeekend), string(OvertimeHoliday)}) {
		errs = append(errs, validator.ValidationError{Field: "context_type", Message: "context_type must be weekday, weekend or holiday"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type OvertimeRuleResponse struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Multiplier          decimal.Decimal `json:"multiplier"`
	ContextType         OvertimeContext `json:"context_type"`
	RequiresPreApproval bool            `json:"requires_pre_approval"`
	IsActive            bool            `json:"is_active"`
}

func NewOvertimeRuleResponse(r OvertimeRule) OvertimeRuleResponse {
	return OvertimeRuleResponse{
		ID:                  r.ID,
		Name:                r.Name,
		Multiplier:          r.Multiplier,
		ContextType:         r.ContextType,
		RequiresPreApproval: r.RequiresPreApproval,
		IsActive:            r.IsActive,
	}
}

type CreatePermissionRuleRequest struct {
	Name               string `json:"name"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	IsPaidTime         bool   `json:"is_paid_time"`
}

func (r *CreatePermissionRuleRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "name is required"})
	}
	if r.MaxDurationMinutes <= 0 {
		errs = append(errs, validator.ValidationError{Field: "max_duration_minutes", Message: "max_duration_minutes must be greater than zero"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PermissionRuleResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	IsPaidTime         bool   `json:"is_paid_time"`
	IsActive           bool   `json:"is_active"`
}

func NewPermissionRuleResponse(r PermissionRule) PermissionRuleResponse {
	return PermissionRuleResponse{
		ID:                 r.ID,
		Name:               r.Name,
		MaxDurationMinutes: r.MaxDurationMinutes,
		IsPaidTime:         r.IsPaidTime,
		IsActive:           r.IsActive,
	}
}
