package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/memstore"
)

func newProperty(country string, price int64) *ledger.Property {
	return &ledger.Property{
		ID:        uuid.New(),
		Title:     "Flat",
		Address:   "1 Main St",
		Country:   country,
		Price:     ledger.NewMoney(decimal.NewFromInt(price), "USD"),
		Status:    ledger.PropertyAvailable,
		CreatedAt: time.Now().UTC(),
	}
}

func seed(t *testing.T, s *memstore.Store, props ...*ledger.Property) {
	t.Helper()

	err := s.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		for _, p := range props {
			if err := tx.CreateProperty(ctx, p); err != nil {
				return err
			}
		}

		return nil
	})
	require.NoError(t, err)
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := newProperty("PT", 100)
	seed(t, s, p)

	boom := errors.New("boom")
	err := s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p.Status = ledger.PropertyReserved
		if err := tx.PutProperty(ctx, p, 0); err != nil {
			return err
		}

		if err := tx.CreateTransaction(ctx, &ledger.Transaction{
			ID: uuid.New(), PropertyID: p.ID, Status: ledger.TransactionPending,
		}); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PropertyAvailable, got.Status)
	assert.Equal(t, int64(0), got.Version)

	txs, err := s.ListTransactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_PutPropertyVersioning(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := newProperty("PT", 100)
	seed(t, s, p)

	p.Title = "Renamed"
	require.NoError(t, s.PutProperty(ctx, p, 0))
	assert.Equal(t, int64(1), p.Version)

	stale := p.Clone()
	stale.Title = "Stale"
	err := s.PutProperty(ctx, stale, 0)
	require.ErrorIs(t, err, ledger.ErrVersionConflict)

	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, int64(1), got.Version)

	err = s.PutProperty(ctx, newProperty("PT", 1), 0)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_ConcurrentCommitConflicts(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := newProperty("PT", 100)
	seed(t, s, p)

	read := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup

	var slowErr error

	wg.Add(1)

	go func() {
		defer wg.Done()

		slowErr = s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
			got, err := tx.GetProperty(ctx, p.ID)
			if err != nil {
				return err
			}

			close(read)
			<-release

			got.Status = ledger.PropertyWithdrawn

			return tx.PutProperty(ctx, got, got.Version)
		})
	}()

	<-read

	fast := p.Clone()
	fast.Status = ledger.PropertyReserved
	require.NoError(t, s.PutProperty(ctx, fast, 0))

	close(release)
	wg.Wait()

	require.ErrorIs(t, slowErr, ledger.ErrVersionConflict)

	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PropertyReserved, got.Status)
}

func TestStore_FailedUpdateReportsStaleReads(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name     string
		concurrentEdit bool
		wantErr  error
	}{
		{name: "Stale", concurrentEdit: true, wantErr: ledger.ErrVersionConflict},
		{name: "Consistent", concurrentEdit: false, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memstore.New()
			p := newProperty("PT", 100)
			seed(t, s, p)

			err := s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
				if _, err := tx.GetProperty(ctx, p.ID); err != nil {
					return err
				}

				if tt.concurrentEdit {
					changed := p.Clone()
					changed.Title = "Renovated flat"
					require.NoError(t, s.PutProperty(ctx, changed, 0))
				}

				return boom
			})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_OneActiveTransactionPerProperty(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	p := newProperty("PT", 100)
	seed(t, s, p)

	create := func() error {
		return s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.CreateTransaction(ctx, &ledger.Transaction{
				ID: uuid.New(), PropertyID: p.ID, Status: ledger.TransactionPending,
			})
		})
	}

	require.NoError(t, create())
	require.ErrorIs(t, create(), ledger.ErrVersionConflict)

	err := s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		active, err := tx.ActiveTransaction(ctx, p.ID)
		if err != nil {
			return err
		}

		active.Status = ledger.TransactionCancelled

		if err := tx.PutTransaction(ctx, active, active.Version); err != nil {
			return err
		}

		_, err = tx.ActiveTransaction(ctx, p.ID)
		assert.ErrorIs(t, err, ledger.ErrNotFound)

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, create())
}

func TestStore_CreateTransactionRequiresProperty(t *testing.T) {
	s := memstore.New()

	err := s.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateTransaction(ctx, &ledger.Transaction{ID: uuid.New(), PropertyID: uuid.New()})
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_UniqueUsers(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	create := func(username, email string) error {
		return s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.CreateUser(ctx, &ledger.User{ID: uuid.New(), Username: username, Email: email})
		})
	}

	require.NoError(t, create("ana", "ana@example.com"))
	require.ErrorIs(t, create("ana", "other@example.com"), ledger.ErrDuplicate)
	require.ErrorIs(t, create("bob", "ana@example.com"), ledger.ErrDuplicate)
	require.NoError(t, create("bob", "bob@example.com"))
}

func TestStore_ListProperties(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	pt1, es, pt2 := newProperty("PT", 300), newProperty("ES", 100), newProperty("PT", 200)
	seed(t, s, pt1, es, pt2)

	all, err := s.ListProperties(ctx, ledger.PropertyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{pt1.ID, es.ID, pt2.ID}, ids(all))

	country := "PT"
	maxPrice := decimal.NewFromInt(250)

	got, err := s.ListProperties(ctx, ledger.PropertyFilter{Country: &country})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{pt1.ID, pt2.ID}, ids(got))

	got, err = s.ListProperties(ctx, ledger.PropertyFilter{MaxPrice: &maxPrice})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{es.ID, pt2.ID}, ids(got))

	got, err = s.ListProperties(ctx, ledger.PropertyFilter{Sort: ledger.SortPriceAsc})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{es.ID, pt2.ID, pt1.ID}, ids(got))
}

func TestStore_ListOrphans(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	orphan, held, free := newProperty("PT", 1), newProperty("PT", 2), newProperty("PT", 3)
	orphan.Status = ledger.PropertyReserved
	held.Status = ledger.PropertyUnderContract
	seed(t, s, orphan, held, free)

	err := s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateTransaction(ctx, &ledger.Transaction{
			ID: uuid.New(), PropertyID: held.ID, Status: ledger.TransactionConfirmed,
		})
	})
	require.NoError(t, err)

	got, err := s.ListOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{orphan.ID}, ids(got))
}

func TestStore_CancelledContextDoesNotCommit(t *testing.T) {
	s := memstore.New()
	p := newProperty("PT", 1)

	ctx, cancel := context.WithCancel(context.Background())

	err := s.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.CreateProperty(ctx, p); err != nil {
			return err
		}

		cancel()

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.GetProperty(context.Background(), p.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func ids(props []*ledger.Property) []uuid.UUID {
	out := make([]uuid.UUID, len(props))
	for i, p := range props {
		out[i] = p.ID
	}

	return out
}
