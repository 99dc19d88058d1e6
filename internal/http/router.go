package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/estatebank/internal/http/property"
	"github.com/MrJamesThe3rd/estatebank/internal/http/reconcile"
	"github.com/MrJamesThe3rd/estatebank/internal/http/render"
	"github.com/MrJamesThe3rd/estatebank/internal/http/transaction"
	"github.com/MrJamesThe3rd/estatebank/internal/http/user"
)

// Pinger reports whether the ledger backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Users        *user.Handler
	Properties   *property.Handler
	Transactions *transaction.Handler
	Reconcile    *reconcile.Handler
}

func New(h Handlers, health Pinger, origins []string) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/healthz", healthz(health))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Users.Routes(r)
		})

		r.Route("/properties", h.Properties.Routes)
		r.Route("/transactions", h.Transactions.Routes)
		r.Route("/reconcile", h.Reconcile.Routes)
	})

	return router
}

func healthz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			render.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
