package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

// unitOfWork reads with FOR UPDATE so concurrent writers of the same rows queue
// behind each other; the version predicate on every UPDATE rejects stale writes.
type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	return getUser(ctx, u.tx, id)
}

func (u *unitOfWork) GetProperty(ctx context.Context, id uuid.UUID) (*ledger.Property, error) {
	return getProperty(ctx, u.tx, id, true)
}

func (u *unitOfWork) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return getTransaction(ctx, u.tx, id, true)
}

func (u *unitOfWork) ActiveTransaction(ctx context.Context, propertyID uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE property_id = $1 AND status IN ('pending', 'confirmed')
		FOR UPDATE`

	t, err := scanTransaction(u.tx.QueryRowContext(ctx, query, propertyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active transaction for property %s: %w", propertyID, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting active transaction: %w", mapError(err))
	}

	return t, nil
}

func (u *unitOfWork) CreateUser(ctx context.Context, usr *ledger.User) error {
	query := `
		INSERT INTO users (id, username, email, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := u.tx.ExecContext(ctx, query, usr.ID, usr.Username, usr.Email, usr.FullName, usr.Role, usr.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", mapError(err))
	}

	return nil
}

func (u *unitOfWork) CreateProperty(ctx context.Context, p *ledger.Property) error {
	query := `
		INSERT INTO properties (id, title, address, country, price, currency, status, owner_id, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
	`

	_, err := u.tx.ExecContext(ctx, query,
		p.ID,
		p.Title,
		p.Address,
		p.Country,
		p.Price.Amount,
		p.Price.Currency,
		p.Status,
		p.OwnerID,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating property: %w", mapError(err))
	}

	p.Version = 0

	return nil
}

func (u *unitOfWork) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (id, property_id, buyer_id, seller_id, amount, currency, status, failure_reason, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
	`

	_, err := u.tx.ExecContext(ctx, query,
		t.ID,
		t.PropertyID,
		t.BuyerID,
		t.SellerID,
		t.Amount.Amount,
		t.Amount.Currency,
		t.Status,
		t.FailureReason,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", mapError(err))
	}

	t.Version = 0

	return nil
}

func (u *unitOfWork) PutProperty(ctx context.Context, p *ledger.Property, expectedVersion int64) error {
	query := `
		UPDATE properties
		SET title = $1, address = $2, country = $3, price = $4, currency = $5, status = $6, owner_id = $7, version = version + 1
		WHERE id = $8 AND version = $9
	`

	res, err := u.tx.ExecContext(ctx, query,
		p.Title,
		p.Address,
		p.Country,
		p.Price.Amount,
		p.Price.Currency,
		p.Status,
		p.OwnerID,
		p.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating property: %w", mapError(err))
	}

	if err := u.checkAffected(ctx, res, "properties", p.ID, expectedVersion); err != nil {
		return err
	}

	p.Version = expectedVersion + 1

	return nil
}

func (u *unitOfWork) PutTransaction(ctx context.Context, t *ledger.Transaction, expectedVersion int64) error {
	query := `
		UPDATE transactions
		SET status = $1, failure_reason = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5
	`

	res, err := u.tx.ExecContext(ctx, query, t.Status, t.FailureReason, t.UpdatedAt, t.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", mapError(err))
	}

	if err := u.checkAffected(ctx, res, "transactions", t.ID, expectedVersion); err != nil {
		return err
	}

	t.Version = expectedVersion + 1

	return nil
}

// checkAffected tells a missing row apart from a stale version when an UPDATE
// matched nothing.
func (u *unitOfWork) checkAffected(ctx context.Context, res sql.Result, table string, id uuid.UUID, expectedVersion int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 1 {
		return nil
	}

	var exists bool
	if err := u.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking %s %s: %w", table, id, mapError(err))
	}

	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, ledger.ErrNotFound)
	}

	return fmt.Errorf("%s %s not at v%d: %w", table, id, expectedVersion, ledger.ErrVersionConflict)
}

func (u *unitOfWork) AppendEvent(ctx context.Context, e *ledger.Event) error {
	query := `
		INSERT INTO ledger_events (id, transaction_id, property_id, kind, from_status, to_status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := u.tx.ExecContext(ctx, query,
		e.ID,
		e.TransactionID,
		e.PropertyID,
		e.Kind,
		e.FromStatus,
		e.ToStatus,
		e.Reason,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", mapError(err))
	}

	return nil
}
