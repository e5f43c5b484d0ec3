package domain

import (
	"sort"
	"time"
)

// MaxOccupancy returns the highest number of active bookings covering any single
// day of r. Bookings that are canceled, expired or carry the excluded ID (0 means
// none) are ignored, as is anything that does not touch r. Both ends of every
// booking count as occupied days.
func MaxOccupancy(r DateRange, bookings []Booking, excludeID int64) int {
	type event struct {
		at    int // day offset from r.Start
		delta int
	}
	events := make([]event, 0, 2*len(bookings))
	for _, b := range bookings {
		if !b.Status.Active() || (excludeID != 0 && b.ID == excludeID) {
			continue
		}
		from := maxTime(Day(b.CheckIn), r.Start)
		to := minTime(Day(b.CheckOut), r.End)
		if from.After(to) {
			continue
		}
		// the -1 lands on the day after checkout so checkout day stays occupied
		events = append(events,
			event{at: daysBetween(r.Start, from), delta: 1},
			event{at: daysBetween(r.Start, to) + 1, delta: -1},
		)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at < events[j].at })

	cur, peak := 0, 0
	for i := 0; i < len(events); {
		at := events[i].at
		for ; i < len(events) && events[i].at == at; i++ {
			cur += events[i].delta
		}
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
