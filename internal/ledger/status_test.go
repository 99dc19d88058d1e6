package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

func TestPropertyStatus_CanTransition(t *testing.T) {
	allowed := map[ledger.PropertyStatus][]ledger.PropertyStatus{
		ledger.PropertyAvailable:     {ledger.PropertyReserved, ledger.PropertyWithdrawn},
		ledger.PropertyReserved:      {ledger.PropertyUnderContract, ledger.PropertySold, ledger.PropertyWithdrawn},
		ledger.PropertyUnderContract: {ledger.PropertySold, ledger.PropertyWithdrawn},
	}

	for _, from := range ledger.PropertyStatuses {
		for _, to := range ledger.PropertyStatuses {
			want := false

			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}

			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestProperty_Release(t *testing.T) {
	for _, status := range ledger.PropertyStatuses {
		p := &ledger.Property{Status: status}

		err := p.Release()
		if status.Held() {
			require.NoError(t, err)
			assert.Equal(t, ledger.PropertyAvailable, p.Status)

			continue
		}

		require.ErrorIs(t, err, ledger.ErrInvalidTransition)
		assert.Equal(t, status, p.Status)
	}
}

func TestTransaction_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    ledger.TransactionStatus
		to      ledger.TransactionStatus
		wantErr bool
	}{
		{name: "Confirm", from: ledger.TransactionPending, to: ledger.TransactionConfirmed},
		{name: "SettlePending", from: ledger.TransactionPending, to: ledger.TransactionSettled, wantErr: true},
		{name: "Settle", from: ledger.TransactionConfirmed, to: ledger.TransactionSettled},
		{name: "CancelPending", from: ledger.TransactionPending, to: ledger.TransactionCancelled},
		{name: "CancelConfirmed", from: ledger.TransactionConfirmed, to: ledger.TransactionCancelled},
		{name: "FailConfirmed", from: ledger.TransactionConfirmed, to: ledger.TransactionFailed},
		{name: "CancelSettled", from: ledger.TransactionSettled, to: ledger.TransactionCancelled, wantErr: true},
		{name: "ConfirmCancelled", from: ledger.TransactionCancelled, to: ledger.TransactionConfirmed, wantErr: true},
		{name: "Unconfirm", from: ledger.TransactionConfirmed, to: ledger.TransactionPending, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &ledger.Transaction{Status: tt.from}

			err := tx.Transition(tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, ledger.ErrInvalidTransition)
				assert.Equal(t, tt.from, tx.Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, tx.Status)
		})
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	policy := ledger.RetryPolicy{MaxAttempts: 3}

	t.Run("SucceedsAfterConflict", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return ledger.ErrVersionConflict
			}

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("ExhaustedBecomesContention", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return ledger.ErrVersionConflict
		})
		require.ErrorIs(t, err, ledger.ErrContention)
		assert.Equal(t, 3, calls)
	})

	t.Run("OtherErrorsAreNotRetried", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ledger.ValidCurrency("EUR"))
	assert.False(t, ledger.ValidCurrency("eur"))
	assert.False(t, ledger.ValidCurrency("EURO"))
	assert.False(t, ledger.ValidCurrency(""))
}
