package attendance

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

// ========================================
// PUNCH DTOs
// ========================================

type PunchRequest struct {
	EmployeeID string      `json:"employee_id"`
	Type       PunchType   `json:"type"`
	Time       *time.Time  `json:"time"`
	Source     PunchSource `json:"source"`
	DeviceID   *string     `json:"device_id"`
	Location   *Location   `json:"location"`

	// OverrideWindow is set by HR entry points only, never from JSON.
	OverrideWindow bool `json:"-"`
}

func (r *PunchRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	if r.Type != PunchIn && r.Type != PunchOut {
		errs.Add("type", "type must be IN or OUT")
	}
	if r.Source == "" {
		r.Source = SourceWeb
	}
	if !validator.IsInSlice(string(r.Source), []string{string(SourceDevice), string(SourceMobile), string(SourceWeb), string(SourceManual)}) {
		errs.Add("source", "source must be DEVICE, MOBILE, WEB or MANUAL")
	}
	if r.Source == SourceDevice && (r.DeviceID == nil || validator.IsEmpty(*r.DeviceID)) {
		errs.Add("device_id", "device_id is required for DEVICE punches")
	}
	if r.Location != nil {
		if r.Location.Latitude < -90 || r.Location.Latitude > 90 {
			errs.Add("location.latitude", "latitude must be between -90 and 90")
		}
		if r.Location.Longitude < -180 || r.Location.Longitude > 180 {
			errs.Add("location.longitude", "longitude must be between -180 and 180")
		}
	}

	return errs.Err()
}

// SelfServiceClockSkew bounds how far a self-service punch time may drift
// from the server clock.
const SelfServiceClockSkew = 2 * time.Minute

// ValidateSelfService rejects the fields only HR and device entry points may
// set. Accepted self-service punches are stamped with the server clock.
func (r *PunchRequest) ValidateSelfService(now time.Time) error {
	var errs validator.ValidationErrors

	if r.Source == SourceManual || r.Source == SourceCorrection {
		errs.Add("source", "MANUAL and CORRECTION punches are reserved for HR")
	}
	if r.Time != nil {
		if drift := r.Time.Sub(now); drift > SelfServiceClockSkew || drift < -SelfServiceClockSkew {
			errs.Add("time", "time must match the server clock; use a correction request for past punches")
		}
	}

	return errs.Err()
}

type ManualPunchRequest struct {
	EmployeeID string    `json:"employee_id"`
	Type       PunchType `json:"type"`
	Time       time.Time `json:"time"`
	Reason     string    `json:"reason"`
}

func (r *ManualPunchRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	if r.Type != PunchIn && r.Type != PunchOut {
		errs.Add("type", "type must be IN or OUT")
	}
	if r.Time.IsZero() {
		errs.Add("time", "time is required")
	}
	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "reason is required for manual punches")
	} else if !validator.MaxLength(r.Reason, 500) {
		errs.Add("reason", "reason must not exceed 500 characters")
	}

	return errs.Err()
}

type RoundRequest struct {
	Strategy        RoundingStrategy `json:"strategy"`
	IntervalMinutes int              `json:"interval_minutes"`
}

func (r *RoundRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.Strategy.IsValid() {
		errs.Add("strategy", "strategy must be NEAREST, CEILING or FLOOR")
	}
	if r.IntervalMinutes <= 0 || r.IntervalMinutes > 24*60 {
		errs.Add("interval_minutes", "interval_minutes must be between 1 and 1440")
	}

	return errs.Err()
}

type ShiftCheckRequest struct {
	EmployeeID string    `json:"employee_id"`
	Type       PunchType `json:"type"`
	Time       time.Time `json:"time"`
}

func (r *ShiftCheckRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	if r.Type != PunchIn && r.Type != PunchOut {
		errs.Add("type", "type must be IN or OUT")
	}
	if r.Time.IsZero() {
		errs.Add("time", "time is required")
	}

	return errs.Err()
}

// ========================================
// RESPONSES
// ========================================

type RecordResponse struct {
	ID                  string               `json:"id"`
	EmployeeID          string               `json:"employee_id"`
	WorkDate            string               `json:"work_date"`
	PunchMode           timeconfig.PunchMode `json:"punch_mode"`
	Punches             []Punch              `json:"punches"`
	TotalWorkMinutes    int                  `json:"total_work_minutes"`
	RoundedWorkMinutes  *int                 `json:"rounded_work_minutes,omitempty"`
	RoundingStrategy    *RoundingStrategy    `json:"rounding_strategy,omitempty"`
	RoundingInterval    *int                 `json:"rounding_interval,omitempty"`
	LateMinutes         int                  `json:"late_minutes"`
	EarlyLeaveMinutes   int                  `json:"early_leave_minutes"`
	HasMissedPunch      bool                 `json:"has_missed_punch"`
	FinalisedForPayroll bool                 `json:"finalised_for_payroll"`
	FinalisedAt         *time.Time           `json:"finalised_at,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

func NewRecordResponse(r Record) RecordResponse {
	punches := r.Punches
	if punches == nil {
		punches = []Punch{}
	}
	return RecordResponse{
		ID:                  r.ID,
		EmployeeID:          r.EmployeeID,
		WorkDate:            r.WorkDate.Format("2006-01-02"),
		PunchMode:           r.PunchMode,
		Punches:             punches,
		TotalWorkMinutes:    r.TotalWorkMinutes,
		RoundedWorkMinutes:  r.RoundedWorkMinutes,
		RoundingStrategy:    r.RoundingStrategy,
		RoundingInterval:    r.RoundingInterval,
		LateMinutes:         r.LateMinutes,
		EarlyLeaveMinutes:   r.EarlyLeaveMinutes,
		HasMissedPunch:      r.HasMissedPunch,
		FinalisedForPayroll: r.FinalisedForPayroll,
		FinalisedAt:         r.FinalisedAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func NewRecordResponses(records []Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = NewRecordResponse(r)
	}
	return out
}

type PunchResult struct {
	Record     RecordResponse `json:"record"`
	ShiftCheck ShiftCheck     `json:"shift_check"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// DetectionResult summarises one missed-punch sweep. Deferred counts records
// ending in an IN whose shift is still running.
type DetectionResult struct {
	Day               string `json:"day"`
	Scanned           int    `json:"scanned"`
	Flagged           int    `json:"flagged"`
	ExceptionsCreated int    `json:"exceptions_created"`
	Deferred          int    `json:"deferred"`
	Failed            int    `json:"failed"`
}
