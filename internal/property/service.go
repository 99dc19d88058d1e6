package property

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

var ErrInvalidListing = errors.New("invalid listing")

type Service struct {
	store ledger.Store
	retry ledger.RetryPolicy
	now   func() time.Time
}

func NewService(store ledger.Store, retry ledger.RetryPolicy) *Service {
	return &Service{
		store: store,
		retry: retry,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type CreateParams struct {
	Title   string
	Address string
	Country string
	Price   ledger.Money
	OwnerID *uuid.UUID
}

// Validate reports whether the listing can be created.
func (p CreateParams) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidListing)
	case strings.TrimSpace(p.Country) == "":
		return fmt.Errorf("%w: country is required", ErrInvalidListing)
	case !ledger.ValidCurrency(p.Price.Currency):
		return fmt.Errorf("%w: currency %q", ErrInvalidListing, p.Price.Currency)
	case !ledger.ValidAmount(p.Price.Amount):
		return fmt.Errorf("price %s: %w", p.Price.Amount, ledger.ErrInvalidAmount)
	}

	return nil
}

type UpdateParams struct {
	Title   *string
	Address *string
	Price   *ledger.Money
	// Version is the version the caller last read.
	Version int64
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*ledger.Property, error) {
	created, err := s.CreateBatch(ctx, []CreateParams{params})
	if err != nil {
		return nil, err
	}

	return created[0], nil
}

// CreateBatch lists every property or none of them.
func (s *Service) CreateBatch(ctx context.Context, params []CreateParams) ([]*ledger.Property, error) {
	if len(params) == 0 {
		return nil, nil
	}

	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("listing %d: %w", i+1, err)
		}
	}

	now := s.now()
	props := make([]*ledger.Property, 0, len(params))

	for _, p := range params {
		props = append(props, &ledger.Property{
			ID:        uuid.New(),
			Title:     strings.TrimSpace(p.Title),
			Address:   strings.TrimSpace(p.Address),
			Country:   strings.ToUpper(strings.TrimSpace(p.Country)),
			Price:     ledger.NewMoney(p.Price.Amount, p.Price.Currency),
			Status:    ledger.PropertyAvailable,
			OwnerID:   p.OwnerID,
			CreatedAt: now,
		})
	}

	err := s.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		owners := make(map[uuid.UUID]struct{})

		for i, p := range props {
			if p.OwnerID != nil {
				if _, seen := owners[*p.OwnerID]; !seen {
					if _, err := tx.GetUser(ctx, *p.OwnerID); err != nil {
						return fmt.Errorf("listing %d owner: %w", i+1, err)
					}

					owners[*p.OwnerID] = struct{}{}
				}
			}

			if err := tx.CreateProperty(ctx, p); err != nil {
				return fmt.Errorf("listing %d: %w", i+1, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating properties: %w", err)
	}

	return props, nil
}

func (s *Service) List(ctx context.Context, filter ledger.PropertyFilter) ([]*ledger.Property, error) {
	return s.store.ListProperties(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ledger.Property, error) {
	return s.store.GetProperty(ctx, id)
}

// Withdraw takes a property off the market. An active transaction is left in
// place so it can still be cancelled or failed; it can no longer settle.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID) (*ledger.Property, error) {
	var result *ledger.Property

	err := s.retry.Do(ctx, func() error {
		result = nil

		return s.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
			p, err := tx.GetProperty(ctx, id)
			if err != nil {
				return err
			}

			if p.Status == ledger.PropertyWithdrawn {
				result = p
				return nil
			}

			from, expected := p.Status, p.Version
			if err := p.Transition(ledger.PropertyWithdrawn); err != nil {
				return err
			}

			if err := tx.PutProperty(ctx, p, expected); err != nil {
				return err
			}

			event := &ledger.Event{
				ID:         uuid.New(),
				PropertyID: p.ID,
				Kind:       ledger.EventWithdrawn,
				FromStatus: string(from),
				ToStatus:   string(p.Status),
				CreatedAt:  s.now(),
			}

			active, err := tx.ActiveTransaction(ctx, p.ID)
			switch {
			case err == nil:
				event.TransactionID = &active.ID
			case !errors.Is(err, ledger.ErrNotFound):
				return err
			}

			if err := tx.AppendEvent(ctx, event); err != nil {
				return err
			}

			result = p

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("withdrawing property %s: %w", id, err)
	}

	return result, nil
}

// UpdateListing edits an available property. The write only succeeds if the
// property is still at params.Version, so concurrent editors never overwrite
// each other silently.
func (s *Service) UpdateListing(ctx context.Context, id uuid.UUID, params UpdateParams) (*ledger.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != ledger.PropertyAvailable {
		return nil, fmt.Errorf("editing %s property: %w", p.Status, ledger.ErrPropertyUnavailable)
	}

	if params.Title != nil {
		p.Title = strings.TrimSpace(*params.Title)
	}

	if params.Address != nil {
		p.Address = strings.TrimSpace(*params.Address)
	}

	if params.Price != nil {
		p.Price = ledger.NewMoney(params.Price.Amount, params.Price.Currency)
	}

	check := CreateParams{Title: p.Title, Country: p.Country, Price: p.Price}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.PutProperty(ctx, p, params.Version); err != nil {
		return nil, fmt.Errorf("updating property %s: %w", id, err)
	}

	return p, nil
}
