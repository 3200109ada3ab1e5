package attendance

import (
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
)

// ComputeWorkMinutes sums OUT-IN over consecutive pairs and floors the total
// to whole minutes. A trailing unmatched IN is not counted.
func ComputeWorkMinutes(punches []attendance.Punch) int {
	var total time.Duration
	for i := 0; i+1 < len(punches); i += 2 {
		in, out := punches[i], punches[i+1]
		if in.Type != attendance.PunchIn || out.Type != attendance.PunchOut {
			continue
		}
		if d := out.Time.Sub(in.Time); d > 0 {
			total += d
		}
	}
	return int(total / time.Minute)
}

// HasMissedPunch reports an empty or unpaired punch list.
func HasMissedPunch(punches []attendance.Punch) bool {
	return len(punches) == 0 || len(punches)%2 != 0
}

// RoundMinutes applies strategy over interval. Re-applying the same
// (interval, strategy) to its own output returns the same value.
func RoundMinutes(minutes, interval int, strategy attendance.RoundingStrategy) (int, error) {
	if interval <= 0 || !strategy.IsValid() {
		return 0, attendance.ErrInvalidRounding
	}
	if minutes <= 0 {
		return 0, nil
	}

	switch strategy {
	case attendance.RoundCeiling:
		return ((minutes + interval - 1) / interval) * interval, nil
	case attendance.RoundFloor:
		return (minutes / interval) * interval, nil
	default:
		return ((minutes + interval/2) / interval) * interval, nil
	}
}

// ValidateSequence checks that punches start with IN and strictly alternate.
// FIRST_LAST additionally allows a single pair.
func ValidateSequence(punches []attendance.Punch, mode timeconfig.PunchMode) error {
	for i, p := range punches {
		want := attendance.PunchIn
		if i%2 == 1 {
			want = attendance.PunchOut
		}
		if p.Type != want {
			return fmt.Errorf("%w: punch %d is %s, expected %s", attendance.ErrInvalidPunchSequence, i+1, p.Type, want)
		}
		if i > 0 && !p.Time.After(punches[i-1].Time) {
			return fmt.Errorf("%w: punch %d is not after the previous punch", attendance.ErrInvalidPunchSequence, i+1)
		}
	}
	if mode == timeconfig.PunchModeFirstLast && len(punches) > 2 {
		return fmt.Errorf("%w: FIRST_LAST allows one IN/OUT pair", attendance.ErrInvalidPunchSequence)
	}
	return nil
}

// insertSorted returns a copy of punches with p placed in time order. Equal
// times keep arrival order.
func insertSorted(punches []attendance.Punch, p attendance.Punch) []attendance.Punch {
	out := make([]attendance.Punch, 0, len(punches)+1)
	out = append(out, punches...)
	out = append(out, p)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// recompute refreshes the derived fields after the punch list changed.
// Any rounded value is dropped since it no longer matches the raw total.
func recompute(r *attendance.Record) {
	r.TotalWorkMinutes = ComputeWorkMinutes(r.Punches)
	r.HasMissedPunch = HasMissedPunch(r.Punches)
	r.RoundedWorkMinutes = nil
	r.RoundingStrategy = nil
	r.RoundingInterval = nil
}
