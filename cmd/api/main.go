package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/estatebank/internal/app"
	"github.com/MrJamesThe3rd/estatebank/internal/config"
	ebHttp "github.com/MrJamesThe3rd/estatebank/internal/http"
	propertyHandler "github.com/MrJamesThe3rd/estatebank/internal/http/property"
	reconcileHandler "github.com/MrJamesThe3rd/estatebank/internal/http/reconcile"
	txHandler "github.com/MrJamesThe3rd/estatebank/internal/http/transaction"
	userHandler "github.com/MrJamesThe3rd/estatebank/internal/http/user"
	"github.com/MrJamesThe3rd/estatebank/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stdout).With("app", cfg.App.Name)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	router := ebHttp.New(ebHttp.Handlers{
		Users:        userHandler.NewHandler(a.Users),
		Properties:   propertyHandler.NewHandler(a.Properties, a.Importer),
		Transactions: txHandler.NewHandler(a.Engine, a.Coordinator),
		Reconcile:    reconcileHandler.NewHandler(a.Sweeper),
	}, a.Store, cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	go a.Sweeper.Run(ctx)

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "driver", cfg.Ledger.Driver)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}
