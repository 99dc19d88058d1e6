package property

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/estatebank/internal/http/render"
	"github.com/MrJamesThe3rd/estatebank/internal/http/request"
	"github.com/MrJamesThe3rd/estatebank/internal/importer"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
)

const maxFeedSize = 10 << 20

type Handler struct {
	svc      *property.Service
	importer *importer.Service
}

func NewHandler(svc *property.Service, importer *importer.Service) *Handler {
	return &Handler{svc: svc, importer: importer}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/withdraw", h.withdraw)
	r.Post("/import", h.importFeed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
	})
}

type createPropertyRequest struct {
	Title    string  `json:"title" validate:"required,max=200"`
	Address  string  `json:"address" validate:"max=500"`
	Country  string  `json:"country" validate:"required,max=64"`
	Price    string  `json:"price" validate:"required,positive_amount"`
	Currency string  `json:"currency" validate:"required,currency"`
	OwnerID  *string `json:"owner_id" validate:"omitempty,uuid"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if err := request.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	price, err := request.Money(req.Price, req.Currency)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	params := property.CreateParams{
		Title:   req.Title,
		Address: req.Address,
		Country: req.Country,
		Price:   price,
	}

	if req.OwnerID != nil {
		owner, err := parseUUID(*req.OwnerID)
		if err != nil {
			render.Error(w, r, err)
			return
		}

		params.OwnerID = &owner
	}

	p, err := h.svc.Create(r.Context(), params)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ledger.PropertyFilter{}
	q := r.URL.Query()

	if s := q.Get("country"); s != "" {
		filter.Country = new(strings.ToUpper(s))
	}

	if s := q.Get("maxPrice"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			render.Error(w, r, fmt.Errorf("%w: maxPrice must be a decimal", request.ErrBadRequest))
			return
		}

		filter.MaxPrice = new(d)
	}

	if s := q.Get("status"); s != "" {
		status := ledger.PropertyStatus(s)
		if !status.Valid() {
			render.Error(w, r, fmt.Errorf("%w: unknown status %q", request.ErrBadRequest, s))
			return
		}

		filter.Status = new(status)
	}

	switch sort := ledger.PropertySort(q.Get("sort")); sort {
	case ledger.SortInsertion, ledger.SortPriceAsc, ledger.SortPriceDesc:
		filter.Sort = sort
	default:
		render.Error(w, r, fmt.Errorf("%w: unknown sort %q", request.ErrBadRequest, sort))
		return
	}

	props, err := h.svc.List(r.Context(), filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(props))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(p))
}

type updatePropertyRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Price    *string `json:"price" validate:"omitempty,positive_amount"`
	Currency *string `json:"currency" validate:"required_with=Price,omitempty,currency"`
	Version  *int64  `json:"version" validate:"required"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req updatePropertyRequest
	if err := request.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	params := property.UpdateParams{
		Title:   req.Title,
		Address: req.Address,
		Version: *req.Version,
	}

	if req.Price != nil {
		price, err := request.Money(*req.Price, *req.Currency)
		if err != nil {
			render.Error(w, r, err)
			return
		}

		params.Price = &price
	}

	p, err := h.svc.UpdateListing(r.Context(), id, params)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.svc.Withdraw(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) importFeed(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFeedSize)

	if err := r.ParseMultipartForm(maxFeedSize); err != nil {
		render.Error(w, r, fmt.Errorf("%w: failed to parse form: %v", request.ErrBadRequest, err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		render.Error(w, r, fmt.Errorf("%w: missing file", request.ErrBadRequest))
		return
	}
	defer file.Close()

	format := importer.Format(r.FormValue("format"))

	summary, err := h.importer.Import(r.Context(), format, file)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toImportResponse(summary))
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid uuid %q", request.ErrBadRequest, s)
	}

	return id, nil
}
