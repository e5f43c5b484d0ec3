package domain

import (
	"context"
	"time"
)

type AccommodationRepository interface {
	// GetAccommodation skips soft-deleted rows.
	GetAccommodation(ctx context.Context, id int64) (Accommodation, error)
	ListAccommodations(ctx context.Context, pg PageQuery) ([]Accommodation, error)
	InsertAccommodation(ctx context.Context, a Accommodation) (int64, error)
	UpdateAccommodation(ctx context.Context, a Accommodation) error
	DeleteAccommodation(ctx context.Context, id int64) error
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (Booking, error)
	InsertBooking(ctx context.Context, b Booking) (int64, error)
	UpdateBooking(ctx context.Context, b Booking) error

	// OverlappingBookings returns active bookings of the accommodation whose closed
	// range intersects r. excludeID 0 excludes nothing.
	OverlappingBookings(ctx context.Context, accommodationID int64, r DateRange, excludeID int64) ([]Booking, error)
	// ExpirableBookings returns every non-canceled booking checking out on or before cutoff.
	ExpirableBookings(ctx context.Context, cutoff time.Time) ([]Booking, error)
	ListBookings(ctx context.Context, q BookingsQuery) ([]Booking, error)
}

type PaymentRepository interface {
	PendingPayments(ctx context.Context, userID int64) ([]Payment, error)
}

// Store is the relational store shared by the admission service and the sweeper.
type Store interface {
	AccommodationRepository
	BookingRepository
	PaymentRepository

	// WithAccommodationLocks runs fn in one transaction that holds exclusive locks on
	// the given accommodations. Concurrent callers for the same accommodation are
	// serialized, so an occupancy read inside fn stays valid until fn's writes commit.
	WithAccommodationLocks(ctx context.Context, ids []int64, fn func(tx Store) error) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker hands out short-lived cross-process locks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type PageQuery struct {
	Limit  int
	Offset int
}

type BookingsQuery struct {
	UserID *int64
	Status *BookingStatus
	PageQuery
}
