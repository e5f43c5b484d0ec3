package domain

type AccommodationType string

const (
	TypeHouse        AccommodationType = "HOUSE"
	TypeApartment    AccommodationType = "APARTMENT"
	TypeCondo        AccommodationType = "CONDO"
	TypeVacationHome AccommodationType = "VACATION_HOME"
)

// Accommodation is a bookable unit. Availability is its capacity: the number of
// active bookings allowed to cover the same calendar day.
type Accommodation struct {
	ID           int64
	Type         AccommodationType
	Location     string
	Size         string
	Amenities    []string
	DailyRate    Money
	Availability int
	Deleted      bool
}
