package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney normalises the currency code to upper case.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// ParseMoney parses a decimal string such as "250000.00".
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}

	return NewMoney(d, currency), nil
}

// Scale is the number of decimal places an amount may carry.
const Scale = 2

// ValidAmount reports whether d is positive and fits in Scale decimal places.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(Scale))
}

// SameCurrency reports whether both amounts can be settled against each other.
// There is no conversion layer, so only equal codes are compatible.
func (m Money) SameCurrency(o Money) bool {
	return m.Currency == o.Currency
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// ValidCurrency reports whether code looks like an ISO-4217 code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}

	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}

	return true
}
