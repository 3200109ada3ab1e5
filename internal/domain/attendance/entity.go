package attendance

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
)

type PunchType string

const (
	PunchIn  PunchType = "IN"
	PunchOut PunchType = "OUT"
)

type PunchSource string

const (
	SourceDevice     PunchSource = "DEVICE"
	SourceMobile     PunchSource = "MOBILE"
	SourceWeb        PunchSource = "WEB"
	SourceManual     PunchSource = "MANUAL"
	SourceCorrection PunchSource = "CORRECTION"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Punch struct {
	Type     PunchType   `json:"type"`
	Time     time.Time   `json:"time"`
	Source   PunchSource `json:"source"`
	DeviceID *string     `json:"device_id,omitempty"`
	Location *Location   `json:"location,omitempty"`
}

type RoundingStrategy string

const (
	RoundNearest RoundingStrategy = "NEAREST"
	RoundCeiling RoundingStrategy = "CEILING"
	RoundFloor   RoundingStrategy = "FLOOR"
)

func (s RoundingStrategy) IsValid() bool {
	return s == RoundNearest || s == RoundCeiling || s == RoundFloor
}

// Record is one employee's open work period.
type Record struct {
	ID                  string
	EmployeeID          string
	WorkDate            time.Time // calendar date of the first punch, UTC midnight
	PunchMode           timeconfig.PunchMode
	Punches             []Punch
	TotalWorkMinutes    int
	RoundedWorkMinutes  *int
	RoundingStrategy    *RoundingStrategy
	RoundingInterval    *int
	LateMinutes         int
	EarlyLeaveMinutes   int
	HasMissedPunch      bool
	FinalisedForPayroll bool
	FinalisedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r *Record) LastPunch() *Punch {
	if len(r.Punches) == 0 {
		return nil
	}
	return &r.Punches[len(r.Punches)-1]
}

// IsOpen reports whether the record ends with an unmatched IN.
func (r *Record) IsOpen() bool {
	last := r.LastPunch()
	return last != nil && last.Type == PunchIn
}

// FirstIn returns the time of the first IN punch.
func (r *Record) FirstIn() *time.Time {
	for _, p := range r.Punches {
		if p.Type == PunchIn {
			t := p.Time
			return &t
		}
	}
	return nil
}

// LastOut returns the time of the last OUT punch.
func (r *Record) LastOut() *time.Time {
	for i := len(r.Punches) - 1; i >= 0; i-- {
		if r.Punches[i].Type == PunchOut {
			t := r.Punches[i].Time
			return &t
		}
	}
	return nil
}

// ShiftCheck is the result of validating a punch against the employee's shift.
type ShiftCheck struct {
	AssignmentID   *string              `json:"assignment_id,omitempty"`
	ShiftTypeID    *string              `json:"shift_type_id,omitempty"`
	PunchMode      timeconfig.PunchMode `json:"punch_mode,omitempty"`
	ShiftStart     *time.Time           `json:"shift_start,omitempty"`
	ShiftEnd       *time.Time           `json:"shift_end,omitempty"`
	WithinWindow   bool                 `json:"within_window"`
	IsLate         bool                 `json:"is_late"`
	LateByMinutes  int                  `json:"late_by_minutes"`
	IsEarlyLeave   bool                 `json:"is_early_leave"`
	EarlyByMinutes int                  `json:"early_by_minutes"`
	Warning        string               `json:"warning,omitempty"`
}

// MissingPunch names which side of a pair the detector found missing.
type MissingPunch string

const (
	MissingClockIn  MissingPunch = "CLOCK_IN"
	MissingClockOut MissingPunch = "CLOCK_OUT"
)
