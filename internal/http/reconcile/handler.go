package reconcile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/estatebank/internal/http/render"
	"github.com/MrJamesThe3rd/estatebank/internal/reconcile"
)

type Handler struct {
	sweeper *reconcile.Sweeper
}

func NewHandler(sweeper *reconcile.Sweeper) *Handler {
	return &Handler{sweeper: sweeper}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.sweep)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.SweepOnce(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, report)
}
