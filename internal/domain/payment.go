package domain

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
)

// Payment is owned by the payment collaborator; the booking core only reads it.
type Payment struct {
	ID          int64
	BookingID   int64
	Status      PaymentStatus
	SessionURL  string
	SessionID   string
	AmountToPay Money
}
