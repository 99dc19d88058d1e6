// Package settlement drives a transaction from pending to a terminal state and
// applies the matching property change in the same unit of work.
//
// Every operation is idempotent with respect to its target: repeating it on a
// transaction that already reached the target returns the transaction without
// writing anything. Callbacks from an external settlement rail may therefore be
// delivered more than once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

type Coordinator struct {
	store  ledger.Store
	retry  ledger.RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(store ledger.Store, retry ledger.RetryPolicy, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		retry:  retry,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// step describes one edge of the settlement state machine.
type step struct {
	name string
	kind ledger.EventKind

	// done reports whether the transaction and property already reflect the step.
	done func(t *ledger.Transaction, p *ledger.Property) bool

	// apply mutates both records; it must not write.
	apply func(t *ledger.Transaction, p *ledger.Property) (propertyChanged bool, err error)

	reason string
}

func (c *Coordinator) Confirm(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return c.advance(ctx, id, step{
		name: "confirm",
		kind: ledger.EventConfirmed,
		done: func(t *ledger.Transaction, _ *ledger.Property) bool {
			return t.Status == ledger.TransactionConfirmed
		},
		apply: func(t *ledger.Transaction, _ *ledger.Property) (bool, error) {
			return false, t.Transition(ledger.TransactionConfirmed)
		},
	})
}

// Contract moves the property of a confirmed transaction under contract.
func (c *Coordinator) Contract(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return c.advance(ctx, id, step{
		name: "contract",
		kind: ledger.EventContracted,
		done: func(t *ledger.Transaction, p *ledger.Property) bool {
			return t.Status == ledger.TransactionConfirmed && p.Status == ledger.PropertyUnderContract
		},
		apply: func(t *ledger.Transaction, p *ledger.Property) (bool, error) {
			if t.Status != ledger.TransactionConfirmed {
				return false, fmt.Errorf("%w: contract requires a confirmed transaction, got %s", ledger.ErrInvalidTransition, t.Status)
			}

			switch p.Status {
			case ledger.PropertyReserved:
				return true, p.Transition(ledger.PropertyUnderContract)
			case ledger.PropertyWithdrawn:
				return false, fmt.Errorf("property is withdrawn: %w", ledger.ErrPropertyUnavailable)
			default:
				return false, corrupted(t.ID, t.Status, p)
			}
		},
	})
}

func (c *Coordinator) Settle(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return c.advance(ctx, id, step{
		name: "settle",
		kind: ledger.EventSettled,
		done: func(t *ledger.Transaction, _ *ledger.Property) bool {
			return t.Status == ledger.TransactionSettled
		},
		apply: func(t *ledger.Transaction, p *ledger.Property) (bool, error) {
			from := t.Status
			if err := t.Transition(ledger.TransactionSettled); err != nil {
				return false, err
			}

			switch p.Status {
			case ledger.PropertyReserved, ledger.PropertyUnderContract:
				return true, p.Transition(ledger.PropertySold)
			case ledger.PropertyWithdrawn:
				return false, fmt.Errorf("property is withdrawn: %w", ledger.ErrPropertyUnavailable)
			default:
				return false, corrupted(t.ID, from, p)
			}
		},
	})
}

func (c *Coordinator) Cancel(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return c.advance(ctx, id, step{
		name: "cancel",
		kind: ledger.EventCancelled,
		done: func(t *ledger.Transaction, _ *ledger.Property) bool {
			return t.Status == ledger.TransactionCancelled
		},
		apply: func(t *ledger.Transaction, p *ledger.Property) (bool, error) {
			from := t.Status
			if err := t.Transition(ledger.TransactionCancelled); err != nil {
				return false, err
			}

			return release(t.ID, from, p)
		},
	})
}

func (c *Coordinator) FailSettlement(ctx context.Context, id uuid.UUID, reason string) (*ledger.Transaction, error) {
	return c.advance(ctx, id, step{
		name:   "fail",
		kind:   ledger.EventFailed,
		reason: reason,
		done: func(t *ledger.Transaction, _ *ledger.Property) bool {
			return t.Status == ledger.TransactionFailed
		},
		apply: func(t *ledger.Transaction, p *ledger.Property) (bool, error) {
			from := t.Status
			if err := t.Transition(ledger.TransactionFailed); err != nil {
				return false, err
			}

			t.FailureReason = reason

			return release(t.ID, from, p)
		},
	})
}

// release frees a held property. A withdrawn property stays withdrawn.
func release(id uuid.UUID, from ledger.TransactionStatus, p *ledger.Property) (bool, error) {
	switch {
	case p.Status.Held():
		return true, p.Release()
	case p.Status == ledger.PropertyWithdrawn:
		return false, nil
	default:
		return false, corrupted(id, from, p)
	}
}

// corrupted reports the transaction status as stored, before the step applied.
func corrupted(id uuid.UUID, status ledger.TransactionStatus, p *ledger.Property) error {
	return fmt.Errorf("%w: transaction %s is %s but property %s is %s",
		ledger.ErrCorruptedState, id, status, p.ID, p.Status)
}

func (c *Coordinator) advance(ctx context.Context, id uuid.UUID, s step) (*ledger.Transaction, error) {
	var result *ledger.Transaction

	err := c.retry.Do(ctx, func() error {
		result = nil

		return c.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
			t, err := c.advanceOnce(ctx, tx, s, id)
			if err != nil {
				return err
			}

			result = t

			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ledger.ErrCorruptedState) {
			c.logger.Error("ledger inconsistency", "op", s.name, "transaction_id", id, "error", err)
		}

		return nil, fmt.Errorf("%s transaction %s: %w", s.name, id, err)
	}

	return result, nil
}

func (c *Coordinator) advanceOnce(ctx context.Context, tx ledger.Tx, s step, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading transaction: %w", err)
	}

	p, err := tx.GetProperty(ctx, t.PropertyID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: transaction %s references missing property %s", ledger.ErrCorruptedState, t.ID, t.PropertyID)
		}

		return nil, fmt.Errorf("loading property: %w", err)
	}

	if s.done(t, p) {
		c.logger.Debug("transaction already at target", "op", s.name, "transaction_id", t.ID, "status", t.Status)
		return t, nil
	}

	fromTx, fromProp := t.Status, p.Status
	txVersion, propVersion := t.Version, p.Version

	propertyChanged, err := s.apply(t, p)
	if err != nil {
		return nil, err
	}

	now := c.now()

	if t.Status != fromTx {
		t.UpdatedAt = now

		if err := tx.PutTransaction(ctx, t, txVersion); err != nil {
			return nil, err
		}
	}

	if propertyChanged {
		if err := tx.PutProperty(ctx, p, propVersion); err != nil {
			return nil, err
		}
	}

	from, to := string(fromTx), string(t.Status)
	if t.Status == fromTx {
		from, to = string(fromProp), string(p.Status)
	}

	err = tx.AppendEvent(ctx, &ledger.Event{
		ID:            uuid.New(),
		TransactionID: &t.ID,
		PropertyID:    p.ID,
		Kind:          s.kind,
		FromStatus:    from,
		ToStatus:      to,
		Reason:        s.reason,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("transaction advanced",
		"op", s.name,
		"transaction_id", t.ID,
		"property_id", p.ID,
		"from", fromTx,
		"to", t.Status,
		"property_status", p.Status,
	)

	return t, nil
}

func (c *Coordinator) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return c.store.GetTransaction(ctx, id)
}

func (c *Coordinator) List(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	return c.store.ListTransactions(ctx, filter)
}

// Events returns the audit trail of a transaction, oldest first.
func (c *Coordinator) Events(ctx context.Context, id uuid.UUID) ([]*ledger.Event, error) {
	if _, err := c.store.GetTransaction(ctx, id); err != nil {
		return nil, err
	}

	return c.store.ListEvents(ctx, id)
}
