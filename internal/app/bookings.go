package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

const (
	defaultPageLimit  = 20
	maxPageLimit      = 100
	maxRelockAttempts = 3
)

// BookingService admits, edits and cancels bookings. Every write that can raise
// occupancy runs under Store.WithAccommodationLocks together with its capacity check.
type BookingService struct {
	store  domain.Store
	notify *dispatcher
}

func NewBookingService(s domain.Store, n domain.Notifier) *BookingService {
	return &BookingService{store: s, notify: newDispatcher(n, nil)}
}

func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, req BookingRequest) (domain.Booking, error) {
	r, err := req.dateRange()
	if err != nil {
		return domain.Booking{}, s.reject("create", err)
	}

	pending, err := s.store.PendingPayments(ctx, actor.UserID)
	if err != nil {
		return domain.Booking{}, s.reject("create", fmt.Errorf("pending payments for user %d: %w", actor.UserID, err))
	}
	if len(pending) > 0 {
		return domain.Booking{}, s.reject("create", &domain.PendingPaymentError{UserID: actor.UserID, Count: len(pending)})
	}

	var created domain.Booking
	err = s.store.WithAccommodationLocks(ctx, []int64{req.AccommodationID}, func(tx domain.Store) error {
		acc, err := tx.GetAccommodation(ctx, req.AccommodationID)
		if err != nil {
			return err
		}
		if err := CheckAvailability(ctx, tx, acc, r, 0); err != nil {
			return err
		}
		b := domain.NewBooking(actor.UserID, acc.ID, r)
		id, err := tx.InsertBooking(ctx, b)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		b.ID = id
		created = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.reject("create", err)
	}

	observability.ObserveAdmission("create", "admitted")
	log.Info().
		Int64("booking_id", created.ID).
		Int64("accommodation_id", created.AccommodationID).
		Int64("user_id", created.UserID).
		Str("dates", r.String()).
		Msg("booking created")
	s.notify.bookingCreated(ctx, created)
	return created, nil
}

// UpdateBookingDetails moves the owner's booking to new dates and/or another
// accommodation. The booking does not count against itself in the capacity check.
func (s *BookingService) UpdateBookingDetails(ctx context.Context, actor domain.Actor, id int64, req BookingRequest) (domain.Booking, error) {
	r, err := req.dateRange()
	if err != nil {
		return domain.Booking{}, s.reject("update", err)
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, s.reject("update", err)
	}
	if !actor.On(b).Has(domain.CapOwner) {
		return domain.Booking{}, s.reject("update", &domain.ForbiddenError{Action: "you can only update your own bookings"})
	}

	locks := []int64{req.AccommodationID}
	if b.AccommodationID != req.AccommodationID {
		locks = append(locks, b.AccommodationID)
	}
	var updated domain.Booking
	err = s.store.WithAccommodationLocks(ctx, locks, func(tx domain.Store) error {
		cur, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		acc, err := tx.GetAccommodation(ctx, req.AccommodationID)
		if err != nil {
			return err
		}
		if err := CheckAvailability(ctx, tx, acc, r, cur.ID); err != nil {
			return err
		}
		cur.AccommodationID = acc.ID
		cur.CheckIn, cur.CheckOut = r.Start, r.End
		if err := tx.UpdateBooking(ctx, cur); err != nil {
			return fmt.Errorf("update booking %d: %w", id, err)
		}
		updated = cur
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.reject("update", err)
	}

	observability.ObserveAdmission("update", "admitted")
	log.Info().Int64("booking_id", id).Int64("accommodation_id", updated.AccommodationID).Str("dates", r.String()).Msg("booking updated")
	return updated, nil
}

// UpdateBookingStatus is the manager override. Moving an inactive booking back to
// PENDING or CONFIRMED puts it under the capacity check again.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, actor domain.Actor, id int64, status domain.BookingStatus) (domain.Booking, error) {
	if !actor.Manager {
		return domain.Booking{}, s.reject("status", &domain.ForbiddenError{Action: "only managers can change booking status"})
	}
	if !status.Valid() {
		return domain.Booking{}, s.reject("status", fmt.Errorf("%w: invalid booking status: %s", domain.ErrInvalidInput, status))
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, s.reject("status", err)
	}

	var before, after domain.Booking
	var acc domain.Accommodation
	err = s.withBookingLock(ctx, id, b.AccommodationID, func(tx domain.Store, cur domain.Booking) error {
		before = cur
		if err := cur.ApplyStatus(status); err != nil {
			return err
		}
		acc = s.accommodationOrStub(ctx, tx, cur.AccommodationID)
		if status.Active() && !before.Status.Active() {
			if err := CheckAvailability(ctx, tx, acc, cur.Range(), cur.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateBooking(ctx, cur); err != nil {
			return fmt.Errorf("update booking %d: %w", id, err)
		}
		after = cur
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.reject("status", err)
	}

	observability.ObserveAdmission("status", "admitted")
	log.Info().Int64("booking_id", id).Str("from", string(before.Status)).Str("to", string(after.Status)).Msg("booking status changed")
	if before.Status.Active() && !after.Status.Active() {
		now := time.Now()
		switch after.Status {
		case domain.StatusCanceled:
			s.notify.bookingCanceled(ctx, after)
		case domain.StatusExpired:
			s.notify.bookingExpired(ctx, after, now)
		}
		s.notify.accommodationReleased(ctx, acc, now)
	}
	return after, nil
}

// bookingMovedError means the booking changed accommodation between the
// unlocked read and the lock acquisition.
type bookingMovedError struct {
	BookingID       int64
	Locked, Current int64
}

func (e *bookingMovedError) Error() string {
	return fmt.Sprintf("booking %d moved from accommodation %d to %d while locking", e.BookingID, e.Locked, e.Current)
}

// withBookingLock runs fn under the lock of the accommodation the booking belongs
// to at lock time. A concurrent move makes it relock on the new accommodation.
func (s *BookingService) withBookingLock(ctx context.Context, id, accID int64, fn func(tx domain.Store, cur domain.Booking) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.WithAccommodationLocks(ctx, []int64{accID}, func(tx domain.Store) error {
			cur, err := tx.GetBooking(ctx, id)
			if err != nil {
				return err
			}
			if cur.AccommodationID != accID {
				return &bookingMovedError{BookingID: id, Locked: accID, Current: cur.AccommodationID}
			}
			return fn(tx, cur)
		})
		var moved *bookingMovedError
		if !errors.As(err, &moved) || attempt == maxRelockAttempts {
			return err
		}
		log.Debug().Int64("booking_id", id).Int64("from", moved.Locked).Int64("to", moved.Current).Msg("booking moved while locking, retrying")
		accID = moved.Current
	}
}

// CancelBooking lets the owner, or a manager on the owner's behalf, cancel a booking.
func (s *BookingService) CancelBooking(ctx context.Context, actor domain.Actor, id int64) error {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return s.reject("cancel", err)
	}
	if !actor.On(b).Any(domain.CapOwner | domain.CapManager) {
		return s.reject("cancel", &domain.ForbiddenError{Action: "you can only cancel your own bookings"})
	}

	var canceled domain.Booking
	var acc domain.Accommodation
	err = s.withBookingLock(ctx, id, b.AccommodationID, func(tx domain.Store, cur domain.Booking) error {
		if err := cur.Cancel(); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, cur); err != nil {
			return fmt.Errorf("cancel booking %d: %w", id, err)
		}
		acc = s.accommodationOrStub(ctx, tx, cur.AccommodationID)
		canceled = cur
		return nil
	})
	if err != nil {
		return s.reject("cancel", err)
	}

	observability.ObserveAdmission("cancel", "admitted")
	log.Info().Int64("booking_id", id).Int64("user_id", actor.UserID).Msg("booking canceled")
	s.notify.bookingCanceled(ctx, canceled)
	s.notify.accommodationReleased(ctx, acc, time.Now())
	return nil
}

// GetBooking returns a booking to its owner or to a manager.
func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, id int64) (domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !actor.On(b).Any(domain.CapOwner | domain.CapManager) {
		return domain.Booking{}, &domain.ForbiddenError{Action: "you are not authorized to view this booking"}
	}
	return b, nil
}

// BookingFilter narrows ListBookings. Customers always see only their own bookings.
type BookingFilter struct {
	UserID *int64
	Status string
	Limit  int
	Offset int
}

func (s *BookingService) ListBookings(ctx context.Context, actor domain.Actor, f BookingFilter) ([]domain.Booking, error) {
	q := domain.BookingsQuery{UserID: f.UserID, PageQuery: domain.PageQuery{Limit: f.Limit, Offset: f.Offset}}
	if !actor.Manager {
		uid := actor.UserID
		q.UserID = &uid
	}
	if f.Status != "" {
		st, err := domain.ParseBookingStatus(f.Status)
		if err != nil {
			return nil, err
		}
		q.Status = &st
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.store.ListBookings(ctx, q)
}

// accommodationOrStub is used only for release notifications, which must still go
// out when the accommodation has been soft-deleted in the meantime.
func (s *BookingService) accommodationOrStub(ctx context.Context, repo domain.AccommodationRepository, id int64) domain.Accommodation {
	acc, err := repo.GetAccommodation(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Int64("accommodation_id", id).Msg("accommodation lookup failed")
		}
		return domain.Accommodation{ID: id}
	}
	return acc
}

func (s *BookingService) reject(op string, err error) error {
	observability.ObserveAdmission(op, outcomeOf(err))
	return err
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccommodationUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrPendingPaymentExists):
		return "pending_payment"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrDuplicateCancellation):
		return "duplicate_cancellation"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
