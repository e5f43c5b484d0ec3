package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

// SweepReport summarizes one expiration run.
type SweepReport struct {
	RunAt      time.Time `json:"run_at"`
	Cutoff     time.Time `json:"cutoff"`
	Candidates int       `json:"candidates"`
	Expired    []int64   `json:"expired"`
	Failed     []int64   `json:"failed"`
	Skipped    bool      `json:"skipped,omitempty"`
}

// Sweeper expires bookings whose checkout is on or before tomorrow.
type Sweeper struct {
	store  domain.Store
	notify *dispatcher
}

func NewSweeper(s domain.Store, n domain.Notifier) *Sweeper {
	return &Sweeper{store: s, notify: newDispatcher(n, nil)}
}

// Sweep never reads the clock; now is supplied by the caller. Each candidate is
// persisted on its own, so one failure does not stop the rest of the run.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	cutoff := domain.Day(now).AddDate(0, 0, 1)
	rep := SweepReport{RunAt: now, Cutoff: cutoff}

	candidates, err := s.store.ExpirableBookings(ctx, cutoff)
	if err != nil {
		observability.ObserveSweepRun("error")
		return rep, fmt.Errorf("expirable bookings up to %s: %w", cutoff.Format(time.DateOnly), err)
	}
	rep.Candidates = len(candidates)
	if len(candidates) == 0 {
		observability.ObserveSweepRun("empty")
		log.Info().Time("cutoff", cutoff).Msg("no expired bookings")
		s.notify.noExpiredBookings(ctx, now)
		return rep, nil
	}

	accs := map[int64]domain.Accommodation{}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			observability.ObserveSweepRun("canceled")
			return rep, err
		}
		b, err := s.expire(ctx, c)
		if err != nil {
			observability.ObserveSweptBooking("failed")
			log.Error().Err(err).Int64("booking_id", c.ID).Msg("expire booking failed")
			rep.Failed = append(rep.Failed, c.ID)
			continue
		}
		observability.ObserveSweptBooking("expired")
		rep.Expired = append(rep.Expired, b.ID)

		s.notify.bookingExpired(ctx, b, now)
		acc, ok := accs[b.AccommodationID]
		if !ok {
			acc, err = s.store.GetAccommodation(ctx, b.AccommodationID)
			if err != nil {
				log.Warn().Err(err).Int64("accommodation_id", b.AccommodationID).Msg("accommodation lookup failed")
				acc = domain.Accommodation{ID: b.AccommodationID}
			}
			accs[b.AccommodationID] = acc
		}
		s.notify.accommodationReleased(ctx, acc, now)
	}

	outcome := "ok"
	if len(rep.Failed) > 0 {
		outcome = "partial"
	}
	observability.ObserveSweepRun(outcome)
	log.Info().
		Time("cutoff", cutoff).
		Int("candidates", rep.Candidates).
		Int("expired", len(rep.Expired)).
		Int("failed", len(rep.Failed)).
		Msg("expiration sweep finished")
	return rep, nil
}

func (s *Sweeper) expire(ctx context.Context, c domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := s.store.WithAccommodationLocks(ctx, []int64{c.AccommodationID}, func(tx domain.Store) error {
		cur, err := tx.GetBooking(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := cur.Expire(); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, cur); err != nil {
			return fmt.Errorf("update booking %d: %w", cur.ID, err)
		}
		out = cur
		return nil
	})
	return out, err
}

// SweepJob runs the sweeper at most once per calendar day across replicas.
type SweepJob struct {
	sweeper *Sweeper
	locker  domain.Locker
	ttl     time.Duration
}

func NewSweepJob(s *Sweeper, l domain.Locker, ttl time.Duration) *SweepJob {
	if ttl <= 0 {
		ttl = 23 * time.Hour
	}
	return &SweepJob{sweeper: s, locker: l, ttl: ttl}
}

func sweepLockKey(now time.Time) string {
	return "staybook:sweep:" + domain.Day(now).Format(time.DateOnly)
}

// Run takes the day's lock and sweeps. The lock is kept after a successful run so
// other replicas skip the same day; it is released when the sweep fails.
func (j *SweepJob) Run(ctx context.Context, now time.Time) (SweepReport, error) {
	if j.locker == nil {
		return j.sweeper.Sweep(ctx, now)
	}
	key := sweepLockKey(now)
	release, ok, err := j.locker.TryLock(ctx, key, j.ttl)
	if err != nil {
		observability.ObserveSweepRun("error")
		return SweepReport{RunAt: now}, fmt.Errorf("sweep lock %s: %w", key, err)
	}
	if !ok {
		observability.ObserveSweepRun("skipped")
		log.Info().Str("key", key).Msg("sweep already claimed by another replica")
		return SweepReport{RunAt: now, Skipped: true}, nil
	}
	rep, err := j.sweeper.Sweep(ctx, now)
	if err != nil {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn().Err(rerr).Str("key", key).Msg("sweep lock release failed")
		}
		return rep, err
	}
	return rep, nil
}
