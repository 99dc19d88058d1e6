// Package app wires the ledger services from configuration. Both the API
// server and the operator console build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrJamesThe3rd/estatebank/internal/config"
	"github.com/MrJamesThe3rd/estatebank/internal/database"
	"github.com/MrJamesThe3rd/estatebank/internal/importer"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/memstore"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/store"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
	"github.com/MrJamesThe3rd/estatebank/internal/reconcile"
	"github.com/MrJamesThe3rd/estatebank/internal/reservation"
	"github.com/MrJamesThe3rd/estatebank/internal/settlement"
	"github.com/MrJamesThe3rd/estatebank/internal/user"
)

// Store is a ledger engine that can report its own health.
type Store interface {
	ledger.Store
	Ping(ctx context.Context) error
}

type App struct {
	Store       Store
	Users       *user.Service
	Properties  *property.Service
	Importer    *importer.Service
	Engine      *reservation.Engine
	Coordinator *settlement.Coordinator
	Sweeper     *reconcile.Sweeper

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	st, err := a.openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Store = st

	var opts []reconcile.Option

	if cfg.Reconcile.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Reconcile.RedisAddr})
		a.closers = append(a.closers, client.Close)

		if err := client.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}

		opts = append(opts, reconcile.WithLocker(reconcile.NewRedisLocker(client, cfg.Reconcile.LockTTL, logger)))
		logger.Info("sweep lock enabled", "redis", cfg.Reconcile.RedisAddr)
	}

	retry := ledger.RetryPolicy{
		MaxAttempts: cfg.Ledger.MaxAttempts,
		Backoff:     cfg.Ledger.Backoff,
	}

	a.Users = user.NewService(st)
	a.Properties = property.NewService(st, retry)
	a.Importer = importer.NewService(a.Properties, logger)
	a.Engine = reservation.NewEngine(st, retry, logger)
	a.Coordinator = settlement.NewCoordinator(st, retry, logger)
	a.Sweeper = reconcile.NewSweeper(st, reconcile.Config{
		Workers:  cfg.Reconcile.Workers,
		Interval: cfg.Reconcile.Interval,
	}, logger, opts...)

	return a, nil
}

func (a *App) openStore(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg.Ledger.Driver == "memory" {
		logger.Warn("using in-memory ledger, state is lost on exit")
		return memstore.New(), nil
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a.closers = append(a.closers, db.Close)

	if cfg.DB.Migrate {
		if err := database.Migrate(db, cfg.DB.Name); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	return store.New(db), nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
