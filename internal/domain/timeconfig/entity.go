package timeconfig

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PunchMode string

const (
	PunchModeFirstLast PunchMode = "FIRST_LAST"
	PunchModeMultiple  PunchMode = "MULTIPLE"
)

func (m PunchMode) IsValid() bool {
	return m == PunchModeFirstLast || m == PunchModeMultiple
}

// ShiftSegment is one continuous working block of a split shift.
type ShiftSegment struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ShiftType struct {
	ID                 string
	Name               string
	StartTime          string // HH:MM
	EndTime            string // HH:MM, earlier than StartTime for overnight shifts
	GracePeriodMinutes int
	BreakMinutes       int
	PunchMode          PunchMode
	Segments           []ShiftSegment
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Blocks returns the working blocks of the shift; a plain shift is one block.
func (s ShiftType) Blocks() []ShiftSegment {
	if len(s.Segments) > 0 {
		return s.Segments
	}
	return []ShiftSegment{{StartTime: s.StartTime, EndTime: s.EndTime}}
}

type AssignmentStatus string

const (
	AssignmentDraft     AssignmentStatus = "draft"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentApproved  AssignmentStatus = "approved"
	AssignmentRejected  AssignmentStatus = "rejected"
	AssignmentCancelled AssignmentStatus = "cancelled"
	AssignmentExpired   AssignmentStatus = "expired"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentDraft:     {AssignmentSubmitted, AssignmentCancelled},
	AssignmentSubmitted: {AssignmentApproved, AssignmentRejected, AssignmentCancelled},
	AssignmentApproved:  {AssignmentCancelled, AssignmentExpired},
}

func (s AssignmentStatus) CanTransitionTo(target AssignmentStatus) bool {
	for _, t := range assignmentTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ShiftAssignment binds an employee, a department or a position to either a
// fixed shift type or a weekly scheduling rule for a validity window.
type ShiftAssignment struct {
	ID               string
	ShiftTypeID      *string
	SchedulingRuleID *string
	EmployeeID       *string
	DepartmentID     *string
	PositionID       *string
	StartDate        time.Time
	EndDate          *time.Time
	Status           AssignmentStatus
	CreatedBy        string
	ApprovedBy       *string
	ApprovedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Covers reports whether day falls inside the assignment's validity window.
func (a ShiftAssignment) Covers(day time.Time) bool {
	if day.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !day.After(*a.EndDate)
}

// WeeklyEntry maps a weekday to a shift type; a nil shift is a rest day.
type WeeklyEntry struct {
	Weekday     time.Weekday `json:"weekday"`
	ShiftTypeID *string      `json:"shift_type_id"`
}

type SchedulingRule struct {
	ID             string
	Name           string
	WeeklyPattern  []WeeklyEntry
	MinWeeklyHours decimal.Decimal
	MaxWeeklyHours decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ShiftFor returns the shift type scheduled on weekday, if any.
func (r SchedulingRule) ShiftFor(weekday time.Weekday) (string, bool) {
	for _, e := range r.WeeklyPattern {
		if e.Weekday == weekday && e.ShiftTypeID != nil {
			return *e.ShiftTypeID, true
		}
	}
	return "", false
}

type OvertimeContext string

const (
	OvertimeWeekday OvertimeContext = "weekday"
	OvertimeWeekend OvertimeContext = "weekend"
	OvertimeHoliday OvertimeContext = "holiday"
)

type OvertimeRule struct {
	ID                  string
	Name                string
	Multiplier          decimal.Decimal
	ContextType         OvertimeContext
	RequiresPreApproval bool
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type PermissionRule struct {
	ID                 string
	Name               string
	MaxDurationMinutes int
	IsPaidTime         bool
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ParseClock converts "HH:MM" to minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
