package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrForbidden                = errors.New("forbidden")
	ErrAccommodationUnavailable = errors.New("accommodation unavailable")
	ErrPendingPaymentExists     = errors.New("pending payment exists")
	ErrDuplicateCancellation    = errors.New("booking has already been canceled")
	ErrInvalidTransition        = errors.New("invalid booking status transition")
	ErrInvalidInput             = errors.New("invalid input")
)

// NotFoundError names the missing entity; it matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with ID: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UnavailableError carries the accommodation and range that failed the capacity check.
type UnavailableError struct {
	AccommodationID int64
	Range           DateRange
	Occupancy       int
	Capacity        int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("accommodation ID %d is not available from %s", e.AccommodationID, e.Range)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrAccommodationUnavailable }

// PendingPaymentError blocks new bookings while the user owes payments.
type PendingPaymentError struct {
	UserID int64
	Count  int
}

func (e *PendingPaymentError) Error() string {
	return fmt.Sprintf("cannot create new booking: you have %d pending payment(s), complete or renew them first", e.Count)
}

func (e *PendingPaymentError) Is(target error) bool { return target == ErrPendingPaymentExists }

// ForbiddenError explains which action the actor may not perform.
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string { return "access denied: " + e.Action }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }
