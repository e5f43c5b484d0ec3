package domain

// Capability is a permission bit an actor holds with respect to one booking.
type Capability uint8

const (
	CapOwner Capability = 1 << iota
	CapManager
)

func (c Capability) Has(want Capability) bool { return c&want == want }

// Any reports whether at least one of the wanted bits is present.
func (c Capability) Any(want Capability) bool { return c&want != 0 }

// Actor is the authenticated caller, resolved once per request by the auth layer.
type Actor struct {
	UserID  int64
	Manager bool
}

// On resolves the capability set the actor holds over b.
func (a Actor) On(b Booking) Capability {
	var c Capability
	if a.UserID != 0 && b.UserID == a.UserID {
		c |= CapOwner
	}
	if a.Manager {
		c |= CapManager
	}
	return c
}
