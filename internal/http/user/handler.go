package user

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/http/render"
	"github.com/MrJamesThe3rd/estatebank/internal/http/request"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/user"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

type createUserRequest struct {
	Username string      `json:"username" validate:"required,max=64"`
	Email    string      `json:"email" validate:"required,email"`
	FullName string      `json:"full_name" validate:"max=200"`
	Role     ledger.Role `json:"role" validate:"omitempty,oneof=buyer seller agent admin"`
}

type userResponse struct {
	ID        uuid.UUID   `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FullName  string      `json:"full_name,omitempty"`
	Role      ledger.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

func toResponse(u *ledger.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := request.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	u, err := h.svc.Create(r.Context(), user.CreateParams{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(u))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := request.ID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(u))
}
