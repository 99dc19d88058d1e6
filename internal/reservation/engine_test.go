package reservation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/memstore"
	"github.com/MrJamesThe3rd/estatebank/internal/reservation"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store    *memstore.Store
	engine   *reservation.Engine
	owner    *ledger.User
	buyer    *ledger.User
	property *ledger.Property
}

func usd(v int64) ledger.Money {
	return ledger.NewMoney(decimal.NewFromInt(v), "USD")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: memstore.New(),
		owner: &ledger.User{ID: uuid.New(), Username: "owner", Email: "owner@example.com", Role: ledger.RoleSeller},
		buyer: &ledger.User{ID: uuid.New(), Username: "buyer", Email: "buyer@example.com", Role: ledger.RoleBuyer},
	}
	f.property = &ledger.Property{
		ID:      uuid.New(),
		Title:   "Townhouse",
		Country: "US",
		Price:   usd(100),
		Status:  ledger.PropertyAvailable,
		OwnerID: &f.owner.ID,
	}

	err := f.store.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		for _, u := range []*ledger.User{f.owner, f.buyer} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}

		return tx.CreateProperty(ctx, f.property)
	})
	require.NoError(t, err)

	f.engine = reservation.NewEngine(f.store, ledger.RetryPolicy{MaxAttempts: 3}, discard)

	return f
}

func (f *fixture) addUser(t *testing.T, name string) *ledger.User {
	t.Helper()

	u := &ledger.User{ID: uuid.New(), Username: name, Email: name + "@example.com", Role: ledger.RoleBuyer}
	require.NoError(t, f.store.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateUser(ctx, u)
	}))

	return u
}

func TestEngine_Reserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.engine.Reserve(ctx, reservation.ReserveParams{
		PropertyID: f.property.ID,
		BuyerID:    f.buyer.ID,
		Amount:     usd(100),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.TransactionPending, got.Status)
	assert.Equal(t, f.owner.ID, got.SellerID)
	assert.Equal(t, f.buyer.ID, got.BuyerID)
	assert.Equal(t, int64(0), got.Version)

	prop, err := f.store.GetProperty(ctx, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PropertyReserved, prop.Status)
	assert.Equal(t, int64(1), prop.Version)

	events, err := f.store.ListEvents(ctx, got.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventReserved, events[0].Kind)

	_, err = f.engine.Reserve(ctx, reservation.ReserveParams{
		PropertyID: f.property.ID,
		BuyerID:    f.buyer.ID,
		Amount:     usd(100),
	})
	require.ErrorIs(t, err, ledger.ErrPropertyUnavailable)
}

func TestEngine_ReservePreconditions(t *testing.T) {
	type testCase struct {
		name    string
		params  func(f *fixture) reservation.ReserveParams
		prepare func(t *testing.T, f *fixture)
		wantErr error
	}

	tests := []testCase{
		{
			name: "UnknownProperty",
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{PropertyID: uuid.New(), BuyerID: f.buyer.ID, Amount: usd(100)}
			},
			wantErr: ledger.ErrNotFound,
		},
		{
			name: "UnknownBuyer",
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{PropertyID: f.property.ID, BuyerID: uuid.New(), Amount: usd(100)}
			},
			wantErr: ledger.ErrNotFound,
		},
		{
			name: "Withdrawn",
			prepare: func(t *testing.T, f *fixture) {
				p := f.property.Clone()
				p.Status = ledger.PropertyWithdrawn
				require.NoError(t, f.store.PutProperty(context.Background(), p, p.Version))
			},
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{PropertyID: f.property.ID, BuyerID: f.buyer.ID, Amount: usd(100)}
			},
			wantErr: ledger.ErrPropertyUnavailable,
		},
		{
			name: "NoOwner",
			prepare: func(t *testing.T, f *fixture) {
				p := f.property.Clone()
				p.OwnerID = nil
				require.NoError(t, f.store.PutProperty(context.Background(), p, p.Version))
			},
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{PropertyID: f.property.ID, BuyerID: f.buyer.ID, Amount: usd(100)}
			},
			wantErr: ledger.ErrPropertyUnavailable,
		},
		{
			name: "CurrencyMismatch",
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{
					PropertyID: f.property.ID,
					BuyerID:    f.buyer.ID,
					Amount:     ledger.NewMoney(decimal.NewFromInt(100), "EUR"),
				}
			},
			wantErr: ledger.ErrCurrencyMismatch,
		},
		{
			name: "SelfPurchase",
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{PropertyID: f.property.ID, BuyerID: f.owner.ID, Amount: usd(100)}
			},
			wantErr: ledger.ErrSelfPurchase,
		},
		{
			name: "ZeroAmount",
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{PropertyID: f.property.ID, BuyerID: f.buyer.ID, Amount: usd(0)}
			},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name: "SubCentAmount",
			params: func(f *fixture) reservation.ReserveParams {
				return reservation.ReserveParams{
					PropertyID: f.property.ID,
					BuyerID:    f.buyer.ID,
					Amount:     ledger.NewMoney(decimal.RequireFromString("100.005"), "USD"),
				}
			},
			wantErr: ledger.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			if tt.prepare != nil {
				tt.prepare(t, f)
			}

			got, err := f.engine.Reserve(ctx, tt.params(f))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)

			txs, err := f.store.ListTransactions(ctx, ledger.TransactionFilter{})
			require.NoError(t, err)
			assert.Empty(t, txs)
		})
	}
}

func TestEngine_ConcurrentReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const buyers = 16

	ids := make([]uuid.UUID, buyers)
	for i := range ids {
		ids[i] = f.addUser(t, "buyer-"+uuid.NewString()[:8]).ID
	}

	var wg sync.WaitGroup

	errs := make([]error, buyers)
	start := make(chan struct{})

	for i := range ids {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			_, errs[i] = f.engine.Reserve(ctx, reservation.ReserveParams{
				PropertyID: f.property.ID,
				BuyerID:    ids[i],
				Amount:     usd(100),
			})
		}()
	}

	close(start)
	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		assert.True(t,
			errors.Is(err, ledger.ErrPropertyUnavailable) || errors.Is(err, ledger.ErrContention),
			"unexpected error: %v", err)
	}

	assert.Equal(t, 1, succeeded)

	txs, err := f.store.ListTransactions(ctx, ledger.TransactionFilter{PropertyID: &f.property.ID})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestEngine_ReserveRetriesConflicts(t *testing.T) {
	owner := uuid.New()
	buyer := uuid.New()
	prop := &ledger.Property{ID: uuid.New(), Price: usd(100), Status: ledger.PropertyAvailable, OwnerID: &owner}

	type testCase struct {
		name      string
		conflicts int
		wantErr   error
	}

	tests := []testCase{
		{name: "RecoversAfterConflict", conflicts: 2},
		{name: "GivesUp", conflicts: 3, wantErr: ledger.ErrContention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := ledger.NewMockStore(ctrl)
			tx := ledger.NewMockTx(ctrl)

			calls := 0
			store.EXPECT().
				Update(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
					calls++
					if calls <= tt.conflicts {
						return ledger.ErrVersionConflict
					}

					return fn(ctx, tx)
				}).
				Times(min(tt.conflicts+1, 3))

			if tt.wantErr == nil {
				tx.EXPECT().GetProperty(gomock.Any(), prop.ID).Return(prop.Clone(), nil)
				tx.EXPECT().GetUser(gomock.Any(), gomock.Any()).Return(&ledger.User{}, nil).Times(2)
				tx.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().PutProperty(gomock.Any(), gomock.Any(), int64(0)).Return(nil)
				tx.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(nil)
			}

			engine := reservation.NewEngine(store, ledger.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, discard)
			got, err := engine.Reserve(context.Background(), reservation.ReserveParams{
				PropertyID: prop.ID,
				BuyerID:    buyer,
				Amount:     usd(100),
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, owner, got.SellerID)
		})
	}
}
