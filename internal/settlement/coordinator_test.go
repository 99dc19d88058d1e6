package settlement_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/memstore"
	"github.com/MrJamesThe3rd/estatebank/internal/reservation"
	"github.com/MrJamesThe3rd/estatebank/internal/settlement"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store       *memstore.Store
	engine      *reservation.Engine
	coordinator *settlement.Coordinator
	owner       uuid.UUID
	property    uuid.UUID
}

func usd(v int64) ledger.Money {
	return ledger.NewMoney(decimal.NewFromInt(v), "USD")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	owner := &ledger.User{ID: uuid.New(), Username: "owner", Email: "owner@example.com", Role: ledger.RoleSeller}
	prop := &ledger.Property{
		ID:      uuid.New(),
		Title:   "Cottage",
		Country: "US",
		Price:   usd(100),
		Status:  ledger.PropertyAvailable,
		OwnerID: &owner.ID,
	}

	require.NoError(t, store.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.CreateUser(ctx, owner); err != nil {
			return err
		}

		return tx.CreateProperty(ctx, prop)
	}))

	policy := ledger.RetryPolicy{MaxAttempts: 3}

	return &fixture{
		store:       store,
		engine:      reservation.NewEngine(store, policy, discard),
		coordinator: settlement.NewCoordinator(store, policy, discard),
		owner:       owner.ID,
		property:    prop.ID,
	}
}

func (f *fixture) reserve(t *testing.T) *ledger.Transaction {
	t.Helper()

	buyer := &ledger.User{ID: uuid.New(), Username: "b-" + uuid.NewString()[:8], Email: uuid.NewString() + "@example.com"}
	require.NoError(t, f.store.Update(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateUser(ctx, buyer)
	}))

	got, err := f.engine.Reserve(context.Background(), reservation.ReserveParams{
		PropertyID: f.property,
		BuyerID:    buyer.ID,
		Amount:     usd(100),
	})
	require.NoError(t, err)

	return got
}

func (f *fixture) propertyStatus(t *testing.T) ledger.PropertyStatus {
	t.Helper()

	p, err := f.store.GetProperty(context.Background(), f.property)
	require.NoError(t, err)

	return p.Status
}

func (f *fixture) forceProperty(t *testing.T, status ledger.PropertyStatus) {
	t.Helper()

	p, err := f.store.GetProperty(context.Background(), f.property)
	require.NoError(t, err)

	p.Status = status
	require.NoError(t, f.store.PutProperty(context.Background(), p, p.Version))
}

func TestCoordinator_ReserveConfirmSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.reserve(t)
	assert.Equal(t, ledger.PropertyReserved, f.propertyStatus(t))

	confirmed, err := f.coordinator.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionConfirmed, confirmed.Status)
	assert.Equal(t, ledger.PropertyReserved, f.propertyStatus(t))

	settled, err := f.coordinator.Settle(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionSettled, settled.Status)
	assert.Equal(t, ledger.PropertySold, f.propertyStatus(t))

	buyer := &ledger.User{ID: uuid.New(), Username: "late", Email: "late@example.com"}
	require.NoError(t, f.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateUser(ctx, buyer)
	}))

	_, err = f.engine.Reserve(ctx, reservation.ReserveParams{PropertyID: f.property, BuyerID: buyer.ID, Amount: usd(100)})
	require.ErrorIs(t, err, ledger.ErrPropertyUnavailable)

	events, err := f.store.ListEvents(ctx, created.ID)
	require.NoError(t, err)

	kinds := make([]ledger.EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}

	assert.Equal(t, []ledger.EventKind{ledger.EventReserved, ledger.EventConfirmed, ledger.EventSettled}, kinds)
}

func TestCoordinator_ContractThenSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.reserve(t)

	_, err := f.coordinator.Contract(ctx, created.ID)
	require.ErrorIs(t, err, ledger.ErrInvalidTransition)

	_, err = f.coordinator.Confirm(ctx, created.ID)
	require.NoError(t, err)

	got, err := f.coordinator.Contract(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionConfirmed, got.Status)
	assert.Equal(t, ledger.PropertyUnderContract, f.propertyStatus(t))

	again, err := f.coordinator.Contract(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Version, again.Version)

	_, err = f.coordinator.Settle(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PropertySold, f.propertyStatus(t))
}

func TestCoordinator_CancelReleasesProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.reserve(t)

	cancelled, err := f.coordinator.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionCancelled, cancelled.Status)
	assert.Equal(t, ledger.PropertyAvailable, f.propertyStatus(t))

	next := f.reserve(t)
	assert.Equal(t, ledger.TransactionPending, next.Status)
	assert.Equal(t, ledger.PropertyReserved, f.propertyStatus(t))
}

func TestCoordinator_FailSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.reserve(t)
	_, err := f.coordinator.Confirm(ctx, created.ID)
	require.NoError(t, err)
	_, err = f.coordinator.Contract(ctx, created.ID)
	require.NoError(t, err)

	failed, err := f.coordinator.FailSettlement(ctx, created.ID, "funds returned")
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionFailed, failed.Status)
	assert.Equal(t, "funds returned", failed.FailureReason)
	assert.Equal(t, ledger.PropertyAvailable, f.propertyStatus(t))

	events, err := f.store.ListEvents(ctx, created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "funds returned", events[len(events)-1].Reason)
}

func TestCoordinator_CancelKeepsWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.reserve(t)
	f.forceProperty(t, ledger.PropertyWithdrawn)

	_, err := f.coordinator.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PropertyWithdrawn, f.propertyStatus(t))
}

func TestCoordinator_Idempotence(t *testing.T) {
	type testCase struct {
		name   string
		target func(c *settlement.Coordinator, ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
		prior  []string
	}

	ops := map[string]func(c *settlement.Coordinator, ctx context.Context, id uuid.UUID) (*ledger.Transaction, error){
		"confirm": (*settlement.Coordinator).Confirm,
		"settle":  (*settlement.Coordinator).Settle,
		"cancel":  (*settlement.Coordinator).Cancel,
		"fail": func(c *settlement.Coordinator, ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
			return c.FailSettlement(ctx, id, "rail timeout")
		},
	}

	tests := []testCase{
		{name: "confirm", target: ops["confirm"]},
		{name: "settle", target: ops["settle"], prior: []string{"confirm"}},
		{name: "cancel", target: ops["cancel"]},
		{name: "fail", target: ops["fail"], prior: []string{"confirm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			created := f.reserve(t)

			for _, op := range tt.prior {
				_, err := ops[op](f.coordinator, ctx, created.ID)
				require.NoError(t, err)
			}

			first, err := tt.target(f.coordinator, ctx, created.ID)
			require.NoError(t, err)

			eventsBefore, err := f.store.ListEvents(ctx, created.ID)
			require.NoError(t, err)

			second, err := tt.target(f.coordinator, ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, first.Status, second.Status)
			assert.Equal(t, first.Version, second.Version)

			eventsAfter, err := f.store.ListEvents(ctx, created.ID)
			require.NoError(t, err)
			assert.Len(t, eventsAfter, len(eventsBefore))
		})
	}
}

func TestCoordinator_InvalidTransitions(t *testing.T) {
	type testCase struct {
		name  string
		prior []string
		op    string
	}

	tests := []testCase{
		{name: "SettlePending", op: "settle"},
		{name: "CancelSettled", prior: []string{"confirm", "settle"}, op: "cancel"},
		{name: "ConfirmCancelled", prior: []string{"cancel"}, op: "confirm"},
		{name: "SettleFailed", prior: []string{"fail"}, op: "settle"},
		{name: "FailCancelled", prior: []string{"cancel"}, op: "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			created := f.reserve(t)

			run := func(op string) error {
				var err error

				switch op {
				case "confirm":
					_, err = f.coordinator.Confirm(ctx, created.ID)
				case "settle":
					_, err = f.coordinator.Settle(ctx, created.ID)
				case "cancel":
					_, err = f.coordinator.Cancel(ctx, created.ID)
				case "fail":
					_, err = f.coordinator.FailSettlement(ctx, created.ID, "declined")
				}

				return err
			}

			for _, op := range tt.prior {
				require.NoError(t, run(op))
			}

			before, err := f.store.GetProperty(ctx, f.property)
			require.NoError(t, err)

			require.ErrorIs(t, run(tt.op), ledger.ErrInvalidTransition)

			after, err := f.store.GetProperty(ctx, f.property)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.Version, after.Version)
		})
	}
}

func TestCoordinator_SettleOnCorruptedProperty(t *testing.T) {
	type testCase struct {
		name     string
		property ledger.PropertyStatus
		wantErr  error
	}

	tests := []testCase{
		{name: "Available", property: ledger.PropertyAvailable, wantErr: ledger.ErrCorruptedState},
		{name: "Sold", property: ledger.PropertySold, wantErr: ledger.ErrCorruptedState},
		{name: "Withdrawn", property: ledger.PropertyWithdrawn, wantErr: ledger.ErrPropertyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			created := f.reserve(t)
			_, err := f.coordinator.Confirm(ctx, created.ID)
			require.NoError(t, err)

			f.forceProperty(t, tt.property)

			_, err = f.coordinator.Settle(ctx, created.ID)
			require.ErrorIs(t, err, tt.wantErr)

			if errors.Is(tt.wantErr, ledger.ErrCorruptedState) {
				assert.Contains(t, err.Error(), "is confirmed but property")
			}

			got, err := f.store.GetTransaction(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, ledger.TransactionConfirmed, got.Status)
			assert.Equal(t, tt.property, f.propertyStatus(t))
		})
	}
}

// racingStore commits a second operation right after the first transaction
// read of the next unit of work.
type racingStore struct {
	*memstore.Store
	once sync.Once
	cut  func()
}

func (s *racingStore) Update(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.Store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &racingTx{Tx: tx, store: s})
	})
}

type racingTx struct {
	ledger.Tx
	store *racingStore
}

func (tx *racingTx) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := tx.Tx.GetTransaction(ctx, id)
	tx.store.once.Do(tx.store.cut)

	return t, err
}

func TestCoordinator_ConcurrentTerminalSteps(t *testing.T) {
	type testCase struct {
		name       string
		first      func(c *settlement.Coordinator, ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
		second     func(c *settlement.Coordinator, ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
		wantTx     ledger.TransactionStatus
		wantStatus ledger.PropertyStatus
	}

	tests := []testCase{
		{
			name:       "CancelDuringSettle",
			first:      (*settlement.Coordinator).Cancel,
			second:     (*settlement.Coordinator).Settle,
			wantTx:     ledger.TransactionCancelled,
			wantStatus: ledger.PropertyAvailable,
		},
		{
			name:       "SettleDuringCancel",
			first:      (*settlement.Coordinator).Settle,
			second:     (*settlement.Coordinator).Cancel,
			wantTx:     ledger.TransactionSettled,
			wantStatus: ledger.PropertySold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			created := f.reserve(t)
			_, err := f.coordinator.Confirm(ctx, created.ID)
			require.NoError(t, err)

			racing := &racingStore{Store: f.store}
			racing.cut = func() {
				_, err := tt.first(f.coordinator, ctx, created.ID)
				require.NoError(t, err)
			}

			c := settlement.NewCoordinator(racing, ledger.RetryPolicy{MaxAttempts: 3}, discard)

			_, err = tt.second(c, ctx, created.ID)
			require.ErrorIs(t, err, ledger.ErrInvalidTransition)
			require.NotErrorIs(t, err, ledger.ErrCorruptedState)

			got, err := f.store.GetTransaction(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTx, got.Status)
			assert.Equal(t, tt.wantStatus, f.propertyStatus(t))
		})
	}
}

func TestCoordinator_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Confirm(context.Background(), uuid.New())
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCoordinator_StoreErrorsPropagate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := ledger.NewMockStore(ctrl)
	store.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		Return(ledger.ErrVersionConflict).
		Times(2)

	c := settlement.NewCoordinator(store, ledger.RetryPolicy{MaxAttempts: 2}, discard)

	got, err := c.Cancel(context.Background(), uuid.New())
	require.ErrorIs(t, err, ledger.ErrContention)
	assert.Nil(t, got)
}
