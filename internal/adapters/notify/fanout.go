// Package notify combines notification sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// Fanout delivers to every sink and joins their errors.
type Fanout []domain.Notifier

func (f Fanout) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for i, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every notification to the structured log.
type LogSink struct {
	Logger *zerolog.Logger
}

func (s LogSink) Notify(ctx context.Context, n domain.Notification) error {
	l := s.Logger
	if l == nil {
		l = &log.Logger
	}
	ev := l.Info().Str("notification_id", n.ID).Str("kind", string(n.Kind))
	if n.BookingID != 0 {
		ev = ev.Int64("booking_id", n.BookingID)
	}
	if n.AccommodationID != 0 {
		ev = ev.Int64("accommodation_id", n.AccommodationID)
	}
	ev.Msg(n.Text)
	return nil
}
