package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

// unit buffers the writes of one Update call. Reads fall through to the
// committed state and record the version they saw.
type unit struct {
	s *Store

	seenProperties   map[uuid.UUID]int64
	seenTransactions map[uuid.UUID]int64
	seenActive       map[uuid.UUID]uuid.UUID

	newUsers        []*ledger.User
	properties      map[uuid.UUID]*ledger.Property
	newProperties   []uuid.UUID
	transactions    map[uuid.UUID]*ledger.Transaction
	newTransactions []uuid.UUID
	events          []*ledger.Event
}

func newUnit(s *Store) *unit {
	return &unit{
		s:                s,
		seenProperties:   make(map[uuid.UUID]int64),
		seenTransactions: make(map[uuid.UUID]int64),
		seenActive:       make(map[uuid.UUID]uuid.UUID),
		properties:       make(map[uuid.UUID]*ledger.Property),
		transactions:     make(map[uuid.UUID]*ledger.Transaction),
	}
}

func (u *unit) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	for _, usr := range u.newUsers {
		if usr.ID == id {
			cp := *usr
			return &cp, nil
		}
	}

	return u.s.GetUser(ctx, id)
}

// property returns the unit's view of a property without copying it.
func (u *unit) property(id uuid.UUID) (*ledger.Property, bool) {
	if p, ok := u.properties[id]; ok {
		return p, true
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	p, ok := u.s.properties[id]
	if _, seen := u.seenProperties[id]; !seen {
		if ok {
			u.seenProperties[id] = p.Version
		} else {
			u.seenProperties[id] = absent
		}
	}

	if !ok {
		return nil, false
	}

	return p, true
}

func (u *unit) transaction(id uuid.UUID) (*ledger.Transaction, bool) {
	if t, ok := u.transactions[id]; ok {
		return t, true
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	t, ok := u.s.transactions[id]
	if _, seen := u.seenTransactions[id]; !seen {
		if ok {
			u.seenTransactions[id] = t.Version
		} else {
			u.seenTransactions[id] = absent
		}
	}

	if !ok {
		return nil, false
	}

	return t, true
}

func (u *unit) GetProperty(_ context.Context, id uuid.UUID) (*ledger.Property, error) {
	p, ok := u.property(id)
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, ledger.ErrNotFound)
	}

	return p.Clone(), nil
}

func (u *unit) GetTransaction(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	t, ok := u.transaction(id)
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}

	return t.Clone(), nil
}

func (u *unit) ActiveTransaction(ctx context.Context, propertyID uuid.UUID) (*ledger.Transaction, error) {
	for _, t := range u.transactions {
		if t.PropertyID == propertyID && t.Status.Active() {
			return t.Clone(), nil
		}
	}

	u.s.mu.RLock()
	committed := u.s.activeFor(propertyID)
	u.s.mu.RUnlock()

	if _, seen := u.seenActive[propertyID]; !seen {
		u.seenActive[propertyID] = committed
	}

	if committed == uuid.Nil {
		return nil, fmt.Errorf("active transaction for property %s: %w", propertyID, ledger.ErrNotFound)
	}

	// The staged copy, if any, is no longer active.
	if _, staged := u.transactions[committed]; staged {
		return nil, fmt.Errorf("active transaction for property %s: %w", propertyID, ledger.ErrNotFound)
	}

	return u.GetTransaction(ctx, committed)
}

func (u *unit) CreateUser(ctx context.Context, usr *ledger.User) error {
	if _, err := u.GetUser(ctx, usr.ID); err == nil {
		return fmt.Errorf("user %s: %w", usr.ID, ledger.ErrDuplicate)
	}

	cp := *usr
	u.newUsers = append(u.newUsers, &cp)

	return nil
}

func (u *unit) CreateProperty(_ context.Context, p *ledger.Property) error {
	if _, ok := u.property(p.ID); ok {
		return fmt.Errorf("property %s: %w", p.ID, ledger.ErrDuplicate)
	}

	p.Version = 0
	u.properties[p.ID] = p.Clone()
	u.newProperties = append(u.newProperties, p.ID)

	return nil
}

func (u *unit) CreateTransaction(_ context.Context, t *ledger.Transaction) error {
	if _, ok := u.transaction(t.ID); ok {
		return fmt.Errorf("transaction %s: %w", t.ID, ledger.ErrDuplicate)
	}

	if _, ok := u.property(t.PropertyID); !ok {
		return fmt.Errorf("property %s of transaction %s: %w", t.PropertyID, t.ID, ledger.ErrNotFound)
	}

	t.Version = 0
	u.transactions[t.ID] = t.Clone()
	u.newTransactions = append(u.newTransactions, t.ID)

	return nil
}

func (u *unit) PutProperty(_ context.Context, p *ledger.Property, expectedVersion int64) error {
	current, ok := u.property(p.ID)
	if !ok {
		return fmt.Errorf("property %s: %w", p.ID, ledger.ErrNotFound)
	}

	if current.Version != expectedVersion {
		return fmt.Errorf("property %s at v%d, expected v%d: %w", p.ID, current.Version, expectedVersion, ledger.ErrVersionConflict)
	}

	p.Version = expectedVersion + 1
	u.properties[p.ID] = p.Clone()

	return nil
}

func (u *unit) PutTransaction(_ context.Context, t *ledger.Transaction, expectedVersion int64) error {
	current, ok := u.transaction(t.ID)
	if !ok {
		return fmt.Errorf("transaction %s: %w", t.ID, ledger.ErrNotFound)
	}

	if current.Version != expectedVersion {
		return fmt.Errorf("transaction %s at v%d, expected v%d: %w", t.ID, current.Version, expectedVersion, ledger.ErrVersionConflict)
	}

	t.Version = expectedVersion + 1
	u.transactions[t.ID] = t.Clone()

	return nil
}

func (u *unit) AppendEvent(_ context.Context, e *ledger.Event) error {
	u.events = append(u.events, e.Clone())
	return nil
}
