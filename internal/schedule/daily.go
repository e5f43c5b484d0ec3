// Package schedule fires jobs at a fixed wall-clock time every day.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Daily runs Job once per day at Hour:Minute in Location. Job receives the
// wall-clock time it was fired at; it never needs to read the clock itself.
type Daily struct {
	Name     string
	Hour     int
	Minute   int
	Location *time.Location
	Now      func() time.Time
	Job      func(ctx context.Context, now time.Time)
}

// ParseClock reads "HH:MM" in 24h form.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("bad clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

func (d *Daily) loc() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// Next returns the first fire time strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.loc())
	y, m, day := local.Date()
	next := time.Date(y, m, day, d.Hour, d.Minute, 0, 0, d.loc())
	if !next.After(local) {
		next = time.Date(y, m, day+1, d.Hour, d.Minute, 0, 0, d.loc())
	}
	return next
}

// Run blocks until ctx is done, invoking Job at every fire time.
func (d *Daily) Run(ctx context.Context) error {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	for {
		next := d.Next(now())
		wait := next.Sub(now())
		log.Info().Str("job", d.Name).Time("next", next).Msg("scheduled")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		d.fire(ctx, now())
	}
}

func (d *Daily) fire(ctx context.Context, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job", d.Name).Msg("scheduled job panicked")
		}
	}()
	d.Job(ctx, at)
}
