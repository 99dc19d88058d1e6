// Package request decodes and validates JSON request bodies and path/query
// parameters before they reach a service.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

var (
	// ErrBadRequest is returned for bodies or parameters that cannot be parsed.
	ErrBadRequest = errors.New("bad request")
	// ErrValidationFailed is returned when a decoded body breaks a validation rule.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError lists the offending fields by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}

	return "invalid " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		// Registration only fails for empty tags or nil funcs.
		_ = v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
			return err == nil && ledger.ValidAmount(d)
		})

		_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return ledger.ValidCurrency(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		})

		validate = v
	})

	return validate
}

var messages = map[string]string{
	"required":        "is required",
	"email":           "must be a valid email",
	"uuid":            "must be a valid UUID",
	"positive_amount": "must be a positive amount with at most 2 decimal places",
	"currency":        "must be a 3-letter currency code",
	"oneof":           "must be one of the allowed values",
	"max":             "is too long",
}

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}

	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag()
		}

		verr.Fields[fe.Field()] = msg
	}

	return verr
}

// Decode reads a JSON body into dst and validates it.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	return Validate(dst)
}

// ID parses the {name} path parameter as a UUID.
func ID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}

	return id, nil
}

// Money builds a ledger amount from already validated strings.
func Money(amount, currency string) (ledger.Money, error) {
	m, err := ledger.ParseMoney(amount, currency)
	if err != nil {
		return ledger.Money{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	return m, nil
}
