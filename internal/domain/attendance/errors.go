package attendance

import "errors"

// Attendance domain errors
var (
	ErrNoActiveClockIn          = errors.New("no active clock-in to close")
	ErrInvalidPunchSequence     = errors.New("punches must start with IN and strictly alternate IN/OUT")
	ErrPunchOutsideShiftWindow  = errors.New("punch is outside the allowed shift window")
	ErrAttendanceRecordNotFound = errors.New("attendance record not found")
	ErrRecordFinalised          = errors.New("attendance record is finalised for payroll")
	ErrInvalidRounding          = errors.New("rounding interval must be positive and strategy NEAREST, CEILING or FLOOR")
)
