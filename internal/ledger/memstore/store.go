// Package memstore is an in-process ledger engine.
//
// Units of work run optimistically against a private buffer. Every record a
// unit of work reads or writes is remembered with the version it had, and the
// commit, taken under the store's write lock, fails with ErrVersionConflict if
// any of them changed in the meantime. A unit that returns an error is checked
// the same way, so no caller sees an error derived from a torn read. Commits are
// therefore serializable and applied all at once.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

const absent int64 = -1

type Store struct {
	mu sync.RWMutex

	users        map[uuid.UUID]*ledger.User
	properties   map[uuid.UUID]*ledger.Property
	transactions map[uuid.UUID]*ledger.Transaction
	byProperty   map[uuid.UUID][]uuid.UUID
	events       []*ledger.Event

	propertyOrder    []uuid.UUID
	transactionOrder []uuid.UUID
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*ledger.User),
		properties:   make(map[uuid.UUID]*ledger.Property),
		transactions: make(map[uuid.UUID]*ledger.Transaction),
		byProperty:   make(map[uuid.UUID][]uuid.UUID),
	}
}

// Ping always succeeds; it lets the memory engine stand in wherever a health
// check expects a database.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ledger.ErrNotFound)
	}

	cp := *u

	return &cp, nil
}

func (s *Store) GetProperty(_ context.Context, id uuid.UUID) (*ledger.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, ledger.ErrNotFound)
	}

	return p.Clone(), nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}

	return t.Clone(), nil
}

func (s *Store) ListProperties(_ context.Context, filter ledger.PropertyFilter) ([]*ledger.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Property

	for _, id := range s.propertyOrder {
		p := s.properties[id]
		if filter.Match(p) {
			out = append(out, p.Clone())
		}
	}

	switch filter.Sort {
	case ledger.SortPriceAsc:
		slices.SortStableFunc(out, func(a, b *ledger.Property) int { return a.Price.Amount.Cmp(b.Price.Amount) })
	case ledger.SortPriceDesc:
		slices.SortStableFunc(out, func(a, b *ledger.Property) int { return b.Price.Amount.Cmp(a.Price.Amount) })
	}

	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Transaction

	for _, id := range s.transactionOrder {
		t := s.transactions[id]
		if filter.Match(t) {
			out = append(out, t.Clone())
		}
	}

	return out, nil
}

func (s *Store) ListEvents(_ context.Context, transactionID uuid.UUID) ([]*ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Event

	for _, e := range s.events {
		if e.TransactionID != nil && *e.TransactionID == transactionID {
			out = append(out, e.Clone())
		}
	}

	return out, nil
}

func (s *Store) ListOrphans(_ context.Context) ([]*ledger.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Property

	for _, id := range s.propertyOrder {
		p := s.properties[id]
		if p.Status.Held() && s.activeFor(id) == uuid.Nil {
			out = append(out, p.Clone())
		}
	}

	return out, nil
}

func (s *Store) PutProperty(ctx context.Context, p *ledger.Property, expectedVersion int64) error {
	return s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.PutProperty(ctx, p, expectedVersion)
	})
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u := newUnit(s)
	if err := fn(ctx, u); err != nil {
		// A failing unit may have decided on a torn view; only a consistent
		// read set lets its error stand.
		if conflict := s.checkReads(u); conflict != nil {
			return conflict
		}

		return err
	}

	// An abandoned call must not commit after its caller stopped waiting.
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.commit(u)
}

// activeFor returns the committed active transaction for a property or uuid.Nil.
// Callers hold s.mu.
func (s *Store) activeFor(propertyID uuid.UUID) uuid.UUID {
	for _, id := range s.byProperty[propertyID] {
		if s.transactions[id].Status.Active() {
			return id
		}
	}

	return uuid.Nil
}

func (s *Store) checkReads(u *unit) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.validate(u)
}

// validate fails with ErrVersionConflict if anything the unit read has changed
// since. Callers hold s.mu.
func (s *Store) validate(u *unit) error {
	for id, seen := range u.seenProperties {
		if current := s.propertyVersion(id); current != seen {
			return fmt.Errorf("property %s changed (v%d -> v%d): %w", id, seen, current, ledger.ErrVersionConflict)
		}
	}

	for id, seen := range u.seenTransactions {
		if current := s.transactionVersion(id); current != seen {
			return fmt.Errorf("transaction %s changed (v%d -> v%d): %w", id, seen, current, ledger.ErrVersionConflict)
		}
	}

	for propertyID, seen := range u.seenActive {
		if current := s.activeFor(propertyID); current != seen {
			return fmt.Errorf("active transaction of property %s changed: %w", propertyID, ledger.ErrVersionConflict)
		}
	}

	return nil
}

func (s *Store) commit(u *unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(u); err != nil {
		return err
	}

	if err := s.checkUsers(u.newUsers); err != nil {
		return err
	}

	if err := s.checkOneActive(u); err != nil {
		return err
	}

	s.apply(u)

	return nil
}

func (s *Store) propertyVersion(id uuid.UUID) int64 {
	if p, ok := s.properties[id]; ok {
		return p.Version
	}

	return absent
}

func (s *Store) transactionVersion(id uuid.UUID) int64 {
	if t, ok := s.transactions[id]; ok {
		return t.Version
	}

	return absent
}

func (s *Store) checkUsers(users []*ledger.User) error {
	taken := make(map[string]struct{})

	for _, u := range s.users {
		taken["u:"+u.Username] = struct{}{}
		taken["e:"+u.Email] = struct{}{}
	}

	for _, u := range users {
		if _, ok := s.users[u.ID]; ok {
			return fmt.Errorf("user %s: %w", u.ID, ledger.ErrDuplicate)
		}

		for _, key := range []string{"u:" + u.Username, "e:" + u.Email} {
			if _, ok := taken[key]; ok {
				return fmt.Errorf("user %s: %w", key[2:], ledger.ErrDuplicate)
			}

			taken[key] = struct{}{}
		}
	}

	return nil
}

// checkOneActive enforces at most one active transaction per property across
// the committed state and the unit's staged transactions.
func (s *Store) checkOneActive(u *unit) error {
	touched := make(map[uuid.UUID]struct{})
	for _, t := range u.transactions {
		touched[t.PropertyID] = struct{}{}
	}

	for propertyID := range touched {
		active := 0

		for _, id := range s.byProperty[propertyID] {
			if _, staged := u.transactions[id]; staged {
				continue
			}

			if s.transactions[id].Status.Active() {
				active++
			}
		}

		for _, t := range u.transactions {
			if t.PropertyID == propertyID && t.Status.Active() {
				active++
			}
		}

		if active > 1 {
			return fmt.Errorf("property %s already has an active transaction: %w", propertyID, ledger.ErrVersionConflict)
		}
	}

	return nil
}

func (s *Store) apply(u *unit) {
	for _, usr := range u.newUsers {
		s.users[usr.ID] = usr
	}

	for _, id := range u.newProperties {
		s.propertyOrder = append(s.propertyOrder, id)
	}

	for id, p := range u.properties {
		s.properties[id] = p
	}

	for _, id := range u.newTransactions {
		s.transactionOrder = append(s.transactionOrder, id)
		propertyID := u.transactions[id].PropertyID
		s.byProperty[propertyID] = append(s.byProperty[propertyID], id)
	}

	for id, t := range u.transactions {
		s.transactions[id] = t
	}

	s.events = append(s.events, u.events...)
}
