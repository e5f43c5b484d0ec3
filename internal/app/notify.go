package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

// dispatcher formats notifications and hands them to the sink. Sink failures are
// logged and counted, never returned: booking state must not depend on them.
type dispatcher struct {
	sink domain.Notifier
	now  func() time.Time
}

func newDispatcher(sink domain.Notifier, now func() time.Time) *dispatcher {
	if now == nil {
		now = time.Now
	}
	return &dispatcher{sink: sink, now: now}
}

func (d *dispatcher) send(ctx context.Context, n domain.Notification) {
	if d == nil || d.sink == nil {
		return
	}
	n.ID = uuid.NewString()
	if n.At.IsZero() {
		n.At = d.now().UTC()
	}
	defer func() {
		if r := recover(); r != nil {
			observability.ObserveNotification(string(n.Kind), "error")
			log.Error().Interface("panic", r).Str("kind", string(n.Kind)).Msg("notification sink panicked")
		}
	}()
	if err := d.sink.Notify(ctx, n); err != nil {
		observability.ObserveNotification(string(n.Kind), "error")
		log.Warn().Err(err).
			Str("kind", string(n.Kind)).
			Int64("booking_id", n.BookingID).
			Int64("accommodation_id", n.AccommodationID).
			Msg("notification failed")
		return
	}
	observability.ObserveNotification(string(n.Kind), "ok")
}

func (d *dispatcher) bookingCreated(ctx context.Context, b domain.Booking) {
	d.send(ctx, domain.Notification{
		Kind: domain.KindBookingCreated, BookingID: b.ID, AccommodationID: b.AccommodationID,
		Text: fmt.Sprintf("New booking created: ID=%d, Accommodation=%d, Dates=%s", b.ID, b.AccommodationID, b.Range()),
	})
}

func (d *dispatcher) bookingCanceled(ctx context.Context, b domain.Booking) {
	d.send(ctx, domain.Notification{
		Kind: domain.KindBookingCanceled, BookingID: b.ID, AccommodationID: b.AccommodationID,
		Text: fmt.Sprintf("Booking canceled: ID=%d, Accommodation=%d, Dates=%s", b.ID, b.AccommodationID, b.Range()),
	})
}

func (d *dispatcher) bookingExpired(ctx context.Context, b domain.Booking, at time.Time) {
	d.send(ctx, domain.Notification{
		Kind: domain.KindBookingExpired, BookingID: b.ID, AccommodationID: b.AccommodationID, At: at,
		Text: fmt.Sprintf("Booking expired: ID=%d, Accommodation=%d, Dates=%s", b.ID, b.AccommodationID, b.Range()),
	})
}

func (d *dispatcher) accommodationReleased(ctx context.Context, a domain.Accommodation, at time.Time) {
	d.send(ctx, domain.Notification{
		Kind: domain.KindAccommodationReleased, AccommodationID: a.ID, At: at,
		Text: fmt.Sprintf("Accommodation released: ID=%d, Type=%s, Location=%s", a.ID, a.Type, a.Location),
	})
}

func (d *dispatcher) accommodationCreated(ctx context.Context, a domain.Accommodation) {
	d.send(ctx, domain.Notification{
		Kind: domain.KindAccommodationCreated, AccommodationID: a.ID,
		Text: fmt.Sprintf("New accommodation created: ID=%d, Type=%s, Location=%s", a.ID, a.Type, a.Location),
	})
}

func (d *dispatcher) noExpiredBookings(ctx context.Context, at time.Time) {
	d.send(ctx, domain.Notification{Kind: domain.KindNoExpiredBookings, At: at, Text: "No expired bookings today!"})
}
