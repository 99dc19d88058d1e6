package transaction

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/http/render"
	"github.com/MrJamesThe3rd/estatebank/internal/http/request"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/reservation"
	"github.com/MrJamesThe3rd/estatebank/internal/settlement"
)

type Handler struct {
	engine      *reservation.Engine
	coordinator *settlement.Coordinator
}

func NewHandler(engine *reservation.Engine, coordinator *settlement.Coordinator) *Handler {
	return &Handler{engine: engine, coordinator: coordinator}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/events", h.events)
	r.Post("/{id}/confirm", h.step(h.coordinator.Confirm))
	r.Post("/{id}/contract", h.step(h.coordinator.Contract))
	r.Post("/{id}/settle", h.step(h.coordinator.Settle))
	r.Post("/{id}/cancel", h.step(h.coordinator.Cancel))

	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/", h.reserve)
		r.Post("/{id}/fail", h.fail)
	})
}

type reserveRequest struct {
	PropertyID string `json:"property_id" validate:"required,uuid"`
	BuyerID    string `json:"buyer_id" validate:"required,uuid"`
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency" validate:"required,currency"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := request.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	amount, err := request.Money(req.Amount, req.Currency)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	t, err := h.engine.Reserve(r.Context(), reservation.ReserveParams{
		PropertyID: uuid.MustParse(req.PropertyID),
		BuyerID:    uuid.MustParse(req.BuyerID),
		Amount:     amount,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ledger.TransactionFilter{}
	q := r.URL.Query()

	if s := q.Get("property_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			render.Error(w, r, fmt.Errorf("%w: invalid property_id", request.ErrBadRequest))
			return
		}

		filter.PropertyID = new(id)
	}

	if s := q.Get("status"); s != "" {
		status := ledger.TransactionStatus(s)
		if !status.Valid() {
			render.Error(w, r, fmt.Errorf("%w: unknown status %q", request.ErrBadRequest, s))
			return
		}

		filter.Status = new(status)
	}

	txs, err := h.coordinator.List(r.Context(), filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(txs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	t, err := h.coordinator.Get(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	events, err := h.coordinator.Events(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toEventList(events))
}

type transitionFunc func(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)

func (h *Handler) step(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := request.ID(r, "id")
		if err != nil {
			render.Error(w, r, err)
			return
		}

		t, err := fn(r.Context(), id)
		if err != nil {
			render.Error(w, r, err)
			return
		}

		render.JSON(w, http.StatusOK, toResponse(t))
	}
}

type failRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req failRequest
	if err := request.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	t, err := h.coordinator.FailSettlement(r.Context(), id, req.Reason)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(t))
}
