package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/estatebank/internal/app"
	"github.com/MrJamesThe3rd/estatebank/internal/config"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/memstore"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ledger.Driver = "memory"
	cfg.Ledger.MaxAttempts = 3
	cfg.Reconcile.Workers = 2
	cfg.Reconcile.LockTTL = time.Second

	return cfg
}

func TestNew_Memory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(context.Background(), memoryConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.IsType(t, &memstore.Store{}, a.Store)
	assert.NoError(t, a.Store.Ping(context.Background()))

	report, err := a.Sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}

func TestNew_WithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := memoryConfig()
	cfg.Reconcile.RedisAddr = mr.Addr()

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	_, err = a.Sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := memoryConfig()
	cfg.Reconcile.RedisAddr = addr

	_, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorContains(t, err, "connecting to redis")
}
