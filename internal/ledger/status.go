package ledger

import "fmt"

// PropertyStatus is the listing state of a property.
type PropertyStatus string

const (
	PropertyAvailable     PropertyStatus = "available"
	PropertyReserved      PropertyStatus = "reserved"
	PropertyUnderContract PropertyStatus = "under_contract"
	PropertySold          PropertyStatus = "sold"
	PropertyWithdrawn     PropertyStatus = "withdrawn"
)

// propertyTransitions holds the forward edges. Releasing a held property back to
// available is not listed here; it only happens through Property.Release.
var propertyTransitions = map[PropertyStatus][]PropertyStatus{
	PropertyAvailable:     {PropertyReserved, PropertyWithdrawn},
	PropertyReserved:      {PropertyUnderContract, PropertySold, PropertyWithdrawn},
	PropertyUnderContract: {PropertySold, PropertyWithdrawn},
}

// PropertyStatuses lists every status in lifecycle order.
var PropertyStatuses = []PropertyStatus{
	PropertyAvailable, PropertyReserved, PropertyUnderContract, PropertySold, PropertyWithdrawn,
}

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyAvailable, PropertyReserved, PropertyUnderContract, PropertySold, PropertyWithdrawn:
		return true
	}

	return false
}

// Terminal reports whether no further transition is possible.
func (s PropertyStatus) Terminal() bool {
	return s == PropertySold || s == PropertyWithdrawn
}

// Held reports whether the property is tied to an active transaction.
func (s PropertyStatus) Held() bool {
	return s == PropertyReserved || s == PropertyUnderContract
}

func (s PropertyStatus) CanTransition(to PropertyStatus) bool {
	for _, next := range propertyTransitions[s] {
		if next == to {
			return true
		}
	}

	return false
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionSettled   TransactionStatus = "settled"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionFailed    TransactionStatus = "failed"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:   {TransactionConfirmed, TransactionCancelled, TransactionFailed},
	TransactionConfirmed: {TransactionSettled, TransactionCancelled, TransactionFailed},
}

// TransactionStatuses lists every status in lifecycle order.
var TransactionStatuses = []TransactionStatus{
	TransactionPending, TransactionConfirmed, TransactionSettled, TransactionCancelled, TransactionFailed,
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionConfirmed, TransactionSettled, TransactionCancelled, TransactionFailed:
		return true
	}

	return false
}

// Active reports whether the transaction still holds its property.
func (s TransactionStatus) Active() bool {
	return s == TransactionPending || s == TransactionConfirmed
}

func (s TransactionStatus) Terminal() bool {
	return s.Valid() && !s.Active()
}

func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, next := range transactionTransitions[s] {
		if next == to {
			return true
		}
	}

	return false
}

func transitionError(kind string, from, to any) error {
	return fmt.Errorf("%w: %s %v -> %v", ErrInvalidTransition, kind, from, to)
}
