// Package ledger defines the records of the reservation ledger and the storage
// contract every engine implements.
//
// All multi-record writes go through Store.Update. A unit of work either commits
// every write it made or none of them, and readers never observe a partial
// unit of work.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=ledger.go -destination=ledger_mock.go -package=ledger

// Reader is implemented by both the store and a unit of work.
type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetProperty(ctx context.Context, id uuid.UUID) (*Property, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
}

type Store interface {
	Reader

	ListProperties(ctx context.Context, filter PropertyFilter) ([]*Property, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	ListEvents(ctx context.Context, transactionID uuid.UUID) ([]*Event, error)
	// ListOrphans returns held properties that have no active transaction.
	ListOrphans(ctx context.Context) ([]*Property, error)

	// PutProperty writes p if the stored version equals expectedVersion.
	PutProperty(ctx context.Context, p *Property, expectedVersion int64) error

	// Update runs fn as a single serializable unit of work. An error returned by fn
	// rolls everything back and is returned unchanged.
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the ledger inside a unit of work.
//
// Put methods store version expectedVersion+1 and update the passed record's
// Version field on success. A mismatch returns ErrVersionConflict.
type Tx interface {
	Reader

	// ActiveTransaction returns the pending or confirmed transaction for the
	// property, or ErrNotFound.
	ActiveTransaction(ctx context.Context, propertyID uuid.UUID) (*Transaction, error)

	CreateUser(ctx context.Context, u *User) error
	CreateProperty(ctx context.Context, p *Property) error
	CreateTransaction(ctx context.Context, t *Transaction) error

	PutProperty(ctx context.Context, p *Property, expectedVersion int64) error
	PutTransaction(ctx context.Context, t *Transaction, expectedVersion int64) error

	AppendEvent(ctx context.Context, e *Event) error
}

type PropertySort string

const (
	SortInsertion PropertySort = ""
	SortPriceAsc  PropertySort = "price_asc"
	SortPriceDesc PropertySort = "price_desc"
)

type PropertyFilter struct {
	Country  *string
	MaxPrice *decimal.Decimal
	Status   *PropertyStatus
	Sort     PropertySort
}

// Match reports whether p passes every set field of the filter.
// MaxPrice compares amounts only, currencies are not converted.
func (f PropertyFilter) Match(p *Property) bool {
	if f.Country != nil && p.Country != *f.Country {
		return false
	}

	if f.MaxPrice != nil && p.Price.Amount.GreaterThan(*f.MaxPrice) {
		return false
	}

	if f.Status != nil && p.Status != *f.Status {
		return false
	}

	return true
}

type TransactionFilter struct {
	PropertyID *uuid.UUID
	Status     *TransactionStatus
}

func (f TransactionFilter) Match(t *Transaction) bool {
	if f.PropertyID != nil && t.PropertyID != *f.PropertyID {
		return false
	}

	if f.Status != nil && t.Status != *f.Status {
		return false
	}

	return true
}
