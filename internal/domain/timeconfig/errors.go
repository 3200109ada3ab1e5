package timeconfig

import "errors"

var (
	ErrShiftTypeNotFound       = errors.New("shift type not found")
	ErrAssignmentNotFound      = errors.New("shift assignment not found")
	ErrSchedulingRuleNotFound  = errors.New("scheduling rule not found")
	ErrOvertimeRuleNotFound    = errors.New("overtime rule not found")
	ErrPermissionRuleNotFound  = errors.New("permission rule not found")
	ErrNoActiveAssignment      = errors.New("no active shift assignment")
	ErrRestDay                 = errors.New("no shift scheduled on this day")
	ErrInvalidAssignmentStatus = errors.New("invalid shift assignment status transition")
)
