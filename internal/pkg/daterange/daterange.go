// Package daterange expands calendar dates to the UTC day boundaries used by
// every range filter of the engine.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

const Layout = "2006-01-02"

var ErrInvalidRange = errors.New("end date must not be before start date")

// Range is a closed interval [Start, End] in UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// DayStart returns 00:00:00.000 UTC of t's UTC calendar day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayEnd returns 23:59:59.999 UTC of t's UTC calendar day.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).Add(24*time.Hour - time.Millisecond)
}

// Days builds a range covering whole UTC days from start to end.
func Days(start, end time.Time) (Range, error) {
	r := Range{Start: DayStart(start), End: DayEnd(end)}
	if r.End.Before(r.Start) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// Parse builds a range from YYYY-MM-DD strings. Empty bounds are left open
// and default to the zero time and the far future respectively.
func Parse(start, end string) (Range, error) {
	var r Range
	if start != "" {
		s, err := time.Parse(Layout, start)
		if err != nil {
			return Range{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		r.Start = DayStart(s)
	}
	if end != "" {
		e, err := time.Parse(Layout, end)
		if err != nil {
			return Range{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		r.End = DayEnd(e)
	} else {
		r.End = time.Date(9999, 12, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	if r.End.Before(r.Start) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// WorkDate is the calendar date of t in loc, expressed as UTC midnight.
func WorkDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
