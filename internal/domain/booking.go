package domain

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCanceled  BookingStatus = "CANCELED"
	StatusExpired   BookingStatus = "EXPIRED"
)

// ParseBookingStatus accepts the four persisted values, case-insensitively.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: invalid booking status: %s", ErrInvalidInput, s)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Active statuses count against accommodation capacity.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Booking struct {
	ID              int64
	UserID          int64
	AccommodationID int64
	CheckIn         time.Time
	CheckOut        time.Time
	Status          BookingStatus
}

// NewBooking starts every reservation in PENDING.
func NewBooking(userID, accommodationID int64, r DateRange) Booking {
	return Booking{
		UserID:          userID,
		AccommodationID: accommodationID,
		CheckIn:         r.Start,
		CheckOut:        r.End,
		Status:          StatusPending,
	}
}

func (b Booking) Range() DateRange {
	return DateRange{Start: Day(b.CheckIn), End: Day(b.CheckOut)}
}

// Cancel moves the booking to CANCELED. A canceled booking can never be canceled again.
func (b *Booking) Cancel() error {
	if b.Status == StatusCanceled {
		return ErrDuplicateCancellation
	}
	b.Status = StatusCanceled
	return nil
}

// ApplyStatus is the administrative override used by managers.
func (b *Booking) ApplyStatus(s BookingStatus) error {
	if !s.Valid() {
		return fmt.Errorf("%w: invalid booking status: %s", ErrInvalidInput, s)
	}
	if s == StatusCanceled {
		return b.Cancel()
	}
	b.Status = s
	return nil
}

// Expirable reports whether the sweep should expire b for the given cutoff day.
func (b Booking) Expirable(cutoff time.Time) bool {
	return b.Status != StatusCanceled && !Day(b.CheckOut).After(Day(cutoff))
}

// Expire is reserved for the expiration sweep.
func (b *Booking) Expire() error {
	if b.Status == StatusCanceled {
		return fmt.Errorf("%w: booking %d is canceled", ErrInvalidTransition, b.ID)
	}
	b.Status = StatusExpired
	return nil
}
