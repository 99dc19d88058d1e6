package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const (
	userColumns        = `id, username, email, full_name, role, created_at`
	propertyColumns    = `id, title, address, country, price, currency, status, owner_id, created_at, version`
	transactionColumns = `id, property_id, buyer_id, seller_id, amount, currency, status, failure_reason, created_at, updated_at, version`
	eventColumns       = `id, transaction_id, property_id, kind, from_status, to_status, reason, created_at`
)

func scanUser(s scanner) (*ledger.User, error) {
	var u ledger.User

	var role string

	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &role, &u.CreatedAt); err != nil {
		return nil, err
	}

	u.Role = ledger.Role(role)

	return &u, nil
}

// scanProperty expects the column order of propertyColumns.
func scanProperty(s scanner) (*ledger.Property, error) {
	var p ledger.Property

	var status string

	var owner uuid.NullUUID

	if err := s.Scan(
		&p.ID, &p.Title, &p.Address, &p.Country, &p.Price.Amount, &p.Price.Currency,
		&status, &owner, &p.CreatedAt, &p.Version,
	); err != nil {
		return nil, err
	}

	p.Status = ledger.PropertyStatus(status)

	if owner.Valid {
		p.OwnerID = &owner.UUID
	}

	return &p, nil
}

func scanTransaction(s scanner) (*ledger.Transaction, error) {
	var t ledger.Transaction

	var status string

	if err := s.Scan(
		&t.ID, &t.PropertyID, &t.BuyerID, &t.SellerID, &t.Amount.Amount, &t.Amount.Currency,
		&status, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt, &t.Version,
	); err != nil {
		return nil, err
	}

	t.Status = ledger.TransactionStatus(status)

	return &t, nil
}

func scanEvent(s scanner) (*ledger.Event, error) {
	var e ledger.Event

	var kind string

	var txID uuid.NullUUID

	if err := s.Scan(
		&e.ID, &txID, &e.PropertyID, &kind, &e.FromStatus, &e.ToStatus, &e.Reason, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Kind = ledger.EventKind(kind)

	if txID.Valid {
		e.TransactionID = &txID.UUID
	}

	return &e, nil
}

func getUser(ctx context.Context, q querier, id uuid.UUID) (*ledger.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting user: %w", mapError(err))
	}

	return u, nil
}

func getProperty(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*ledger.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanProperty(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting property: %w", mapError(err))
	}

	return p, nil
}

func getTransaction(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	t, err := scanTransaction(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
		}

		return nil, fmt.Errorf("getting transaction: %w", mapError(err))
	}

	return t, nil
}

func queryProperties(ctx context.Context, q querier, query string, args ...any) ([]*ledger.Property, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", mapError(err))
	}
	defer rows.Close()

	var props []*ledger.Property

	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}

		props = append(props, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating properties: %w", err)
	}

	return props, nil
}
