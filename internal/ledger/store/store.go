package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"

	oneActivePerProperty = "transactions_one_active_per_property"
)

// Store is the PostgreSQL ledger engine. Units of work run at SERIALIZABLE
// isolation and lock the rows they read.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapError translates PostgreSQL failures into ledger errors. Serialization
// failures and the one-active-transaction index are version conflicts: the
// unit of work lost a race and should be retried from a fresh read.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%s: %w", pgErr.Message, ledger.ErrVersionConflict)
	case codeUniqueViolation:
		if pgErr.ConstraintName == oneActivePerProperty {
			return fmt.Errorf("property already has an active transaction: %w", ledger.ErrVersionConflict)
		}

		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ledger.ErrDuplicate)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ledger.ErrNotFound)
	}

	return err
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (*ledger.Property, error) {
	return getProperty(ctx, s.db, id, false)
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return getTransaction(ctx, s.db, id, false)
}

func (s *Store) ListProperties(ctx context.Context, filter ledger.PropertyFilter) ([]*ledger.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`

	var args []any

	argIdx := 1

	if filter.Country != nil {
		query += fmt.Sprintf(" AND country = $%d", argIdx)

		args = append(args, *filter.Country)
		argIdx++
	}

	if filter.MaxPrice != nil {
		query += fmt.Sprintf(" AND price <= $%d", argIdx)

		args = append(args, *filter.MaxPrice)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
	}

	switch filter.Sort {
	case ledger.SortPriceAsc:
		query += " ORDER BY price ASC, seq ASC"
	case ledger.SortPriceDesc:
		query += " ORDER BY price DESC, seq ASC"
	default:
		query += " ORDER BY seq ASC"
	}

	return queryProperties(ctx, s.db, query, args...)
}

func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`

	var args []any

	argIdx := 1

	if filter.PropertyID != nil {
		query += fmt.Sprintf(" AND property_id = $%d", argIdx)

		args = append(args, *filter.PropertyID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
	}

	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

func (s *Store) ListEvents(ctx context.Context, transactionID uuid.UUID) ([]*ledger.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM ledger_events WHERE transaction_id = $1 ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*ledger.Event

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}

func (s *Store) ListOrphans(ctx context.Context) ([]*ledger.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties p
		WHERE p.status IN ('reserved', 'under_contract')
		AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.property_id = p.id AND t.status IN ('pending', 'confirmed')
		)
		ORDER BY p.seq ASC`

	return queryProperties(ctx, s.db, query)
}

func (s *Store) PutProperty(ctx context.Context, p *ledger.Property, expectedVersion int64) error {
	return s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.PutProperty(ctx, p, expectedVersion)
	})
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning unit of work: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(ctx, &unitOfWork{tx: dbTx}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing unit of work: %w", mapError(err))
	}

	return nil
}
