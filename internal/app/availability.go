package app

import (
	"context"
	"fmt"

	"staybook/internal/domain"
)

// Occupancy is the peak number of active bookings on any day of r, ignoring excludeID.
func Occupancy(ctx context.Context, bookings domain.BookingRepository, accommodationID int64, r domain.DateRange, excludeID int64) (int, error) {
	existing, err := bookings.OverlappingBookings(ctx, accommodationID, r, excludeID)
	if err != nil {
		return 0, fmt.Errorf("overlapping bookings for accommodation %d: %w", accommodationID, err)
	}
	return domain.MaxOccupancy(r, existing, excludeID), nil
}

// CheckAvailability refuses r when any of its days is already at or above capacity.
// The candidate booking itself is not counted: an accommodation with availability N
// admits a new booking only while existing occupancy is at most N-1.
//
// It only reads; callers that go on to write must hold the accommodation lock
// (Store.WithAccommodationLocks) across both steps.
func CheckAvailability(ctx context.Context, bookings domain.BookingRepository, acc domain.Accommodation, r domain.DateRange, excludeID int64) error {
	occ, err := Occupancy(ctx, bookings, acc.ID, r, excludeID)
	if err != nil {
		return err
	}
	if occ >= acc.Availability {
		return &domain.UnavailableError{AccommodationID: acc.ID, Range: r, Occupancy: occ, Capacity: acc.Availability}
	}
	return nil
}
