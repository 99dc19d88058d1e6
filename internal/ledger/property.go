package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Property is a listing that can be reserved and sold at most once.
type Property struct {
	ID        uuid.UUID
	Title     string
	Address   string
	Country   string
	Price     Money
	Status    PropertyStatus
	OwnerID   *uuid.UUID // weak reference to a User
	CreatedAt time.Time
	Version   int64
}

// Transition moves the property along a forward edge of the transition table.
func (p *Property) Transition(to PropertyStatus) error {
	if !p.Status.CanTransition(to) {
		return transitionError("property", p.Status, to)
	}

	p.Status = to

	return nil
}

// Release returns a held property to available.
func (p *Property) Release() error {
	if !p.Status.Held() {
		return transitionError("property", p.Status, PropertyAvailable)
	}

	p.Status = PropertyAvailable

	return nil
}

// Clone returns a deep copy so callers never share the owner pointer.
func (p *Property) Clone() *Property {
	cp := *p
	if p.OwnerID != nil {
		owner := *p.OwnerID
		cp.OwnerID = &owner
	}

	return &cp
}
