// Package reservation creates purchase transactions. A property is reserved by
// at most one buyer at a time: the reservation re-reads the property inside the
// unit of work that creates the transaction, and a losing concurrent writer is
// rejected by the ledger's version check and retried against the new state.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

type Engine struct {
	store  ledger.Store
	retry  ledger.RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store ledger.Store, retry ledger.RetryPolicy, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		retry:  retry,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type ReserveParams struct {
	PropertyID uuid.UUID
	BuyerID    uuid.UUID
	Amount     ledger.Money
}

// Reserve creates a pending transaction and marks the property reserved in one
// unit of work.
func (e *Engine) Reserve(ctx context.Context, params ReserveParams) (*ledger.Transaction, error) {
	if !ledger.ValidAmount(params.Amount.Amount) {
		return nil, fmt.Errorf("reserving %s: %w", params.PropertyID, ledger.ErrInvalidAmount)
	}

	var created *ledger.Transaction

	err := e.retry.Do(ctx, func() error {
		created = nil

		return e.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
			t, err := e.reserve(ctx, tx, params)
			if err != nil {
				return err
			}

			created = t

			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ledger.ErrContention) {
			e.logger.Warn("reservation gave up after conflicts", "property_id", params.PropertyID, "buyer_id", params.BuyerID)
		}

		return nil, fmt.Errorf("reserving %s: %w", params.PropertyID, err)
	}

	e.logger.Info("property reserved",
		"property_id", created.PropertyID,
		"transaction_id", created.ID,
		"buyer_id", created.BuyerID,
		"amount", created.Amount.String(),
	)

	return created, nil
}

func (e *Engine) reserve(ctx context.Context, tx ledger.Tx, params ReserveParams) (*ledger.Transaction, error) {
	prop, err := tx.GetProperty(ctx, params.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("loading property: %w", err)
	}

	if _, err := tx.GetUser(ctx, params.BuyerID); err != nil {
		return nil, fmt.Errorf("loading buyer: %w", err)
	}

	if prop.Status != ledger.PropertyAvailable {
		return nil, fmt.Errorf("property is %s: %w", prop.Status, ledger.ErrPropertyUnavailable)
	}

	if prop.OwnerID == nil {
		return nil, fmt.Errorf("property has no owner: %w", ledger.ErrPropertyUnavailable)
	}

	if _, err := tx.GetUser(ctx, *prop.OwnerID); err != nil {
		return nil, fmt.Errorf("loading seller: %w", err)
	}

	if !prop.Price.SameCurrency(params.Amount) {
		return nil, fmt.Errorf("offer in %s, listed in %s: %w", params.Amount.Currency, prop.Price.Currency, ledger.ErrCurrencyMismatch)
	}

	if *prop.OwnerID == params.BuyerID {
		return nil, ledger.ErrSelfPurchase
	}

	now := e.now()
	t := &ledger.Transaction{
		ID:         uuid.New(),
		PropertyID: prop.ID,
		BuyerID:    params.BuyerID,
		SellerID:   *prop.OwnerID,
		Amount:     params.Amount,
		Status:     ledger.TransactionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	expected := prop.Version
	if err := prop.Transition(ledger.PropertyReserved); err != nil {
		return nil, err
	}

	if err := tx.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	if err := tx.PutProperty(ctx, prop, expected); err != nil {
		return nil, err
	}

	err = tx.AppendEvent(ctx, &ledger.Event{
		ID:            uuid.New(),
		TransactionID: &t.ID,
		PropertyID:    prop.ID,
		Kind:          ledger.EventReserved,
		FromStatus:    string(ledger.PropertyAvailable),
		ToStatus:      string(ledger.PropertyReserved),
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}
