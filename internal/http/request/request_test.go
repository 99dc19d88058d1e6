package request_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/estatebank/internal/http/request"
)

type offer struct {
	Amount   string `json:"amount" validate:"required,positive_amount"`
	Currency string `json:"currency" validate:"required,currency"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantFields map[string]string
	}{
		{
			name: "Valid",
			body: `{"amount":"250000.00","currency":"eur"}`,
		},
		{
			name:    "Malformed",
			body:    `{"amount":`,
			wantErr: request.ErrBadRequest,
		},
		{
			name:    "UnknownField",
			body:    `{"amount":"1","currency":"EUR","tip":"5"}`,
			wantErr: request.ErrBadRequest,
		},
		{
			name:       "Missing",
			body:       `{}`,
			wantErr:    request.ErrValidationFailed,
			wantFields: map[string]string{"amount": "is required", "currency": "is required"},
		},
		{
			name:       "NegativeAmount",
			body:       `{"amount":"-3","currency":"EUR"}`,
			wantErr:    request.ErrValidationFailed,
			wantFields: map[string]string{"amount": "must be a positive amount with at most 2 decimal places"},
		},
		{
			name:       "SubCentAmount",
			body:       `{"amount":"100.005","currency":"EUR"}`,
			wantErr:    request.ErrValidationFailed,
			wantFields: map[string]string{"amount": "must be a positive amount with at most 2 decimal places"},
		},
		{
			name:       "BadCurrency",
			body:       `{"amount":"3","currency":"EURO"}`,
			wantErr:    request.ErrValidationFailed,
			wantFields: map[string]string{"currency": "must be a 3-letter currency code"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var got offer
			err := request.Decode(r, &got)

			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantFields != nil {
				var verr *request.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantFields, verr.Fields)
			}
		})
	}
}

func TestID(t *testing.T) {
	id := uuid.New()

	withParam := func(v string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", v)

		r := httptest.NewRequest(http.MethodGet, "/", nil)

		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	got, err := request.ID(withParam(id.String()), "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = request.ID(withParam("nope"), "id")
	require.ErrorIs(t, err, request.ErrBadRequest)
}

func TestMoney(t *testing.T) {
	m, err := request.Money(" 12.5 ", "gbp")
	require.NoError(t, err)
	assert.Equal(t, "12.50 GBP", m.String())

	_, err = request.Money("twelve", "GBP")
	require.ErrorIs(t, err, request.ErrBadRequest)
}
