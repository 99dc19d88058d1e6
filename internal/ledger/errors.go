package ledger

import "errors"

var (
	// ErrNotFound is returned when a referenced user, property or transaction is absent.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a write's expected version no longer
	// matches the stored record. Callers retry the whole unit of work.
	ErrVersionConflict = errors.New("version conflict")

	// ErrPropertyUnavailable is returned when a property cannot be reserved or settled
	// in its current status.
	ErrPropertyUnavailable = errors.New("property unavailable")

	// ErrInvalidTransition is returned when the requested status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrContention is returned once the bounded retries on version conflicts are exhausted.
	ErrContention = errors.New("contention: retry later")

	// ErrCurrencyMismatch is returned when an offer is not in the listing currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrCorruptedState means a ledger invariant does not hold. It is never repaired inline.
	ErrCorruptedState = errors.New("corrupted ledger state")

	// ErrSelfPurchase is returned when the buyer owns the property.
	ErrSelfPurchase = errors.New("buyer owns the property")

	// ErrInvalidAmount is returned for zero or negative amounts and for amounts
	// finer than a cent.
	ErrInvalidAmount = errors.New("amount must be positive with at most 2 decimal places")

	// ErrDuplicate is returned when a unique attribute (username, email, id) is already taken.
	ErrDuplicate = errors.New("already exists")
)
