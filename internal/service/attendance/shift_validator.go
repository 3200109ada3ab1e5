package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
)

const (
	warnNoAssignment = "no active shift assignment; punch accepted without shift validation"
	warnRestDay      = "no shift scheduled on this day; punch accepted without shift validation"
)

type ShiftValidatorImpl struct {
	registry   timeconfig.Reader
	directory  employee.Directory
	allowEarly time.Duration
	allowLate  time.Duration
	location   *time.Location
}

func NewShiftValidator(registry timeconfig.Reader, directory employee.Directory, policy config.TimePolicy) attendance.ShiftValidator {
	return &ShiftValidatorImpl{
		registry:   registry,
		directory:  directory,
		allowEarly: time.Duration(policy.AllowEarlyMinutes) * time.Minute,
		allowLate:  time.Duration(policy.AllowLateMinutes) * time.Minute,
		location:   policy.Location(),
	}
}

// shiftWindow is one working block anchored on a concrete day.
type shiftWindow struct {
	assignment *timeconfig.ShiftAssignment
	shift      *timeconfig.ShiftType
	start      time.Time
	end        time.Time
	grace      time.Duration
}

// ValidatePunch implements attendance.ShiftValidator.
func (v *ShiftValidatorImpl) ValidatePunch(ctx context.Context, employeeID string, at time.Time, punchType attendance.PunchType) (attendance.ShiftCheck, error) {
	emp, err := v.directory.ResolveEmployee(ctx, employeeID)
	if err != nil {
		return attendance.ShiftCheck{}, err
	}

	day := daterange.WorkDate(at, v.location)

	// The previous day is consulted for overnight blocks that end today.
	var (
		windows []shiftWindow
		warning string
	)
	for _, anchor := range []time.Time{day, day.AddDate(0, 0, -1)} {
		overnightOnly := !anchor.Equal(day)

		assignment, shift, err := v.registry.ActiveAssignment(ctx, emp, anchor)
		if err != nil {
			switch {
			case errors.Is(err, timeconfig.ErrNoActiveAssignment):
				if !overnightOnly {
					warning = warnNoAssignment
				}
				continue
			case errors.Is(err, timeconfig.ErrRestDay):
				if !overnightOnly {
					warning = warnRestDay
				}
				continue
			case errors.Is(err, timeconfig.ErrShiftTypeNotFound), errors.Is(err, timeconfig.ErrSchedulingRuleNotFound):
				if !overnightOnly {
					warning = fmt.Sprintf("shift configuration incomplete (%v); punch accepted without shift validation", err)
				}
				continue
			default:
				return attendance.ShiftCheck{}, fmt.Errorf("failed to resolve shift assignment: %w", err)
			}
		}

		blocks, err := v.windowsFor(assignment, shift, anchor)
		if err != nil {
			if !overnightOnly {
				warning = fmt.Sprintf("shift type %s has invalid times; punch accepted without shift validation", shift.ID)
			}
			continue
		}
		for _, w := range blocks {
			if overnightOnly && !w.end.After(v.midnightAfter(anchor)) {
				continue
			}
			windows = append(windows, w)
		}
	}

	if len(windows) == 0 {
		if warning == "" {
			warning = warnNoAssignment
		}
		return attendance.ShiftCheck{WithinWindow: true, Warning: warning}, nil
	}

	w, within := v.pick(windows, at, punchType)
	return v.evaluate(w, within, at, punchType), nil
}

func (v *ShiftValidatorImpl) midnightAfter(anchor time.Time) time.Time {
	return time.Date(anchor.Year(), anchor.Month(), anchor.Day()+1, 0, 0, 0, 0, v.location)
}

// windowsFor expands the blocks of shift on the local calendar day anchor.
// A block whose end is not after its start wraps past midnight.
func (v *ShiftValidatorImpl) windowsFor(assignment *timeconfig.ShiftAssignment, shift *timeconfig.ShiftType, anchor time.Time) ([]shiftWindow, error) {
	blocks := shift.Blocks()
	out := make([]shiftWindow, 0, len(blocks))
	for _, b := range blocks {
		startMin, err := timeconfig.ParseClock(b.StartTime)
		if err != nil {
			return nil, err
		}
		endMin, err := timeconfig.ParseClock(b.EndTime)
		if err != nil {
			return nil, err
		}

		base := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, v.location)
		start := base.Add(time.Duration(startMin) * time.Minute)
		end := base.Add(time.Duration(endMin) * time.Minute)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}

		out = append(out, shiftWindow{
			assignment: assignment,
			shift:      shift,
			start:      start,
			end:        end,
			grace:      time.Duration(shift.GracePeriodMinutes) * time.Minute,
		})
	}
	return out, nil
}

func (v *ShiftValidatorImpl) contains(w shiftWindow, at time.Time) bool {
	lo := w.start.Add(-(v.allowEarly + w.grace))
	hi := w.end.Add(v.allowLate + w.grace)
	return !at.Before(lo) && !at.After(hi)
}

// pick prefers windows containing at, then the block boundary closest to
// at: the start for IN punches, the end for OUT punches.
func (v *ShiftValidatorImpl) pick(windows []shiftWindow, at time.Time, punchType attendance.PunchType) (shiftWindow, bool) {
	best := -1
	bestWithin := false
	var bestDist time.Duration

	for i, w := range windows {
		ref := w.start
		if punchType == attendance.PunchOut {
			ref = w.end
		}
		dist := at.Sub(ref)
		if dist < 0 {
			dist = -dist
		}
		within := v.contains(w, at)

		if best == -1 || (within && !bestWithin) || (within == bestWithin && dist < bestDist) {
			best, bestWithin, bestDist = i, within, dist
		}
	}
	return windows[best], bestWithin
}

func (v *ShiftValidatorImpl) evaluate(w shiftWindow, within bool, at time.Time, punchType attendance.PunchType) attendance.ShiftCheck {
	start, end := w.start.UTC(), w.end.UTC()
	check := attendance.ShiftCheck{
		ShiftTypeID:  &w.shift.ID,
		PunchMode:    w.shift.PunchMode,
		ShiftStart:   &start,
		ShiftEnd:     &end,
		WithinWindow: within,
	}
	if w.assignment != nil {
		check.AssignmentID = &w.assignment.ID
	}

	switch punchType {
	case attendance.PunchIn:
		if late := int(at.Sub(w.start.Add(w.grace)) / time.Minute); late > 0 {
			check.IsLate = true
			check.LateByMinutes = late
		}
	case attendance.PunchOut:
		if early := int(w.end.Add(-w.grace).Sub(at) / time.Minute); early > 0 {
			check.IsEarlyLeave = true
			check.EarlyByMinutes = early
		}
	}

	if !within {
		check.Warning = fmt.Sprintf("punch at %s is outside the shift window %s-%s",
			at.In(v.location).Format("15:04"),
			w.start.Format("15:04"),
			w.end.Format("15:04"))
	}
	return check
}
