package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a purchase of a property by a buyer.
// PropertyID and SellerID are fixed at creation.
type Transaction struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	BuyerID       uuid.UUID
	SellerID      uuid.UUID
	Amount        Money
	Status        TransactionStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
}

func (t *Transaction) Transition(to TransactionStatus) error {
	if !t.Status.CanTransition(to) {
		return transitionError("transaction", t.Status, to)
	}

	t.Status = to

	return nil
}

func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}

// EventKind names the change recorded by an Event.
type EventKind string

const (
	EventReserved   EventKind = "reserved"
	EventConfirmed  EventKind = "confirmed"
	EventContracted EventKind = "contracted"
	EventSettled    EventKind = "settled"
	EventCancelled  EventKind = "cancelled"
	EventFailed     EventKind = "failed"
	EventWithdrawn  EventKind = "withdrawn"
	EventRepaired   EventKind = "repaired"
)

// Event is an append-only audit record written in the same unit of work as the
// change it describes. TransactionID is nil for repairs of orphaned properties.
type Event struct {
	ID            uuid.UUID
	TransactionID *uuid.UUID
	PropertyID    uuid.UUID
	Kind          EventKind
	FromStatus    string
	ToStatus      string
	Reason        string
	CreatedAt     time.Time
}

func (e *Event) Clone() *Event {
	cp := *e
	if e.TransactionID != nil {
		id := *e.TransactionID
		cp.TransactionID = &id
	}

	return &cp
}
