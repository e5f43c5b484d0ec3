package domain

import "time"

type NotificationKind string

const (
	KindBookingCreated        NotificationKind = "booking_created"
	KindBookingCanceled       NotificationKind = "booking_canceled"
	KindBookingExpired        NotificationKind = "booking_expired"
	KindAccommodationReleased NotificationKind = "accommodation_released"
	KindAccommodationCreated  NotificationKind = "accommodation_created"
	KindNoExpiredBookings     NotificationKind = "no_expired_bookings"
)

type Notification struct {
	ID              string           `json:"id"`
	Kind            NotificationKind `json:"kind"`
	At              time.Time        `json:"at"`
	BookingID       int64            `json:"booking_id,omitempty"`
	AccommodationID int64            `json:"accommodation_id,omitempty"`
	Text            string           `json:"text"`
}
