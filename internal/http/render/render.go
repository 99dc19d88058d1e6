// Package render writes JSON responses and owns the mapping from domain errors
// to HTTP status codes.
package render

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/estatebank/internal/http/request"
	"github.com/MrJamesThe3rd/estatebank/internal/importer"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
	"github.com/MrJamesThe3rd/estatebank/internal/reconcile"
	"github.com/MrJamesThe3rd/estatebank/internal/user"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type mapping struct {
	target error
	status int
	code   string
}

// mappings is checked in order; the first match wins.
var mappings = []mapping{
	{ledger.ErrNotFound, http.StatusNotFound, "not_found"},
	{ledger.ErrPropertyUnavailable, http.StatusConflict, "property_unavailable"},
	{ledger.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{ledger.ErrContention, http.StatusConflict, "contention"},
	{ledger.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{ledger.ErrDuplicate, http.StatusConflict, "duplicate"},
	{reconcile.ErrSweepLocked, http.StatusConflict, "sweep_locked"},
	{importer.ErrInvalidFeed, http.StatusUnprocessableEntity, "invalid_feed"},
	{ledger.ErrCurrencyMismatch, http.StatusUnprocessableEntity, "currency_mismatch"},
	{ledger.ErrSelfPurchase, http.StatusUnprocessableEntity, "self_purchase"},
	{ledger.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{property.ErrInvalidListing, http.StatusBadRequest, "invalid_listing"},
	{user.ErrInvalidUser, http.StatusBadRequest, "invalid_user"},
	{request.ErrValidationFailed, http.StatusBadRequest, "validation_failed"},
	{request.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{ledger.ErrCorruptedState, http.StatusInternalServerError, "corrupted_state"},
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes err as a JSON error body. Unmapped errors become a 500 without
// leaking their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: "internal", Message: "internal error"}
	status := http.StatusInternalServerError

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			status, resp.Error, resp.Message = m.status, m.code, err.Error()
			break
		}
	}

	var verr *request.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	JSON(w, status, resp)
}
