package domain

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Day truncates t to midnight UTC of the calendar date t falls on in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is a closed range of calendar days: both Start and End are occupied.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both bounds to calendar days and requires start <= end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("%w: check-in and check-out dates are required", ErrInvalidInput)
	}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: check-in %s is after check-out %s", ErrInvalidInput, r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	}
	return r, nil
}

// Days is the number of calendar days in the range, inclusive.
func (r DateRange) Days() int { return daysBetween(r.Start, r.End) + 1 }

func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps uses closed bounds, so a range ending on D overlaps one starting on D.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + " to " + r.End.Format(time.DateOnly)
}

func daysBetween(a, b time.Time) int { return int(b.Sub(a) / day) }
