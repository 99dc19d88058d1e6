// Package reconcile repairs orphaned reservations: properties left reserved or
// under contract with no active transaction behind them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

const lockKey = "estatebank:reconcile:sweep"

// ErrSweepLocked is returned when another replica holds the sweep lock.
var ErrSweepLocked = errors.New("sweep already running elsewhere")

// Locker serialises sweeps across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Config struct {
	Workers  int
	Interval time.Duration
}

type Sweeper struct {
	store    ledger.Store
	locker   Locker
	workers  int
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Sweeper)

// WithLocker guards every sweep with l. Without one, sweeps on different
// replicas may overlap; the losing repair then simply finds nothing to do.
func WithLocker(l Locker) Option {
	return func(s *Sweeper) {
		s.locker = l
	}
}

func NewSweeper(store ledger.Store, cfg Config, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		workers:  max(cfg.Workers, 1),
		interval: cfg.Interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Report summarises one sweep.
type Report struct {
	Scanned  int         `json:"scanned"`
	Repaired []uuid.UUID `json:"repaired"`
	Skipped  int         `json:"skipped"`
	Failed   int         `json:"failed"`
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("reconciliation sweep disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)

			switch {
			case errors.Is(err, ErrSweepLocked):
				s.logger.Debug("sweep skipped, lock held elsewhere")
			case err != nil:
				s.logger.Error("reconciliation sweep failed", "error", err)
			case len(report.Repaired) > 0 || report.Failed > 0:
				s.logger.Info("reconciliation sweep finished",
					"scanned", report.Scanned,
					"repaired", len(report.Repaired),
					"failed", report.Failed,
				)
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	if s.locker == nil {
		return s.sweep(ctx)
	}

	var report Report

	err := s.locker.WithLock(ctx, lockKey, func(ctx context.Context) error {
		var err error
		report, err = s.sweep(ctx)

		return err
	})

	return report, err
}

func (s *Sweeper) sweep(ctx context.Context) (Report, error) {
	orphans, err := s.store.ListOrphans(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing orphans: %w", err)
	}

	report := Report{Scanned: len(orphans), Repaired: []uuid.UUID{}}
	if len(orphans) == 0 {
		return report, nil
	}

	var mu sync.Mutex

	wp := workerpool.New(s.workers)

	for _, p := range orphans {
		wp.Submit(func() {
			repaired, err := s.repair(ctx, p.ID)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				report.Failed++
				s.logger.Error("orphan repair failed", "property_id", p.ID, "error", err)
			case repaired:
				report.Repaired = append(report.Repaired, p.ID)
			default:
				report.Skipped++
			}
		})
	}

	wp.StopWait()

	return report, nil
}

// repair re-checks the property inside its own unit of work, since a
// reservation may have landed between the scan and now.
func (s *Sweeper) repair(ctx context.Context, id uuid.UUID) (bool, error) {
	repaired := false

	err := s.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		repaired = false

		p, err := tx.GetProperty(ctx, id)
		if err != nil {
			return err
		}

		if !p.Status.Held() {
			return nil
		}

		_, err = tx.ActiveTransaction(ctx, id)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		from, expected := p.Status, p.Version
		if err := p.Release(); err != nil {
			return err
		}

		if err := tx.PutProperty(ctx, p, expected); err != nil {
			return err
		}

		err = tx.AppendEvent(ctx, &ledger.Event{
			ID:         uuid.New(),
			PropertyID: p.ID,
			Kind:       ledger.EventRepaired,
			FromStatus: string(from),
			ToStatus:   string(p.Status),
			Reason:     "no active transaction",
			CreatedAt:  s.now(),
		})
		if err != nil {
			return err
		}

		s.logger.Warn("repaired orphaned property", "property_id", p.ID, "from", from)

		repaired = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("repairing property %s: %w", id, err)
	}

	return repaired, nil
}
