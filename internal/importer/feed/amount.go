package feed

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parsePrice parses a price cell written in the given style. Currency symbols
// and spaces are ignored.
// Examples: "1.234,56" (comma style) -> 1234.56, "1,234.56" or "1234.56" (dot style) -> 1234.56.
func parsePrice(s string, style numberStyle) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		}

		return -1
	}, s)

	switch style {
	case numberComma:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	case numberDot:
		clean = strings.ReplaceAll(clean, ",", "")
	}

	return decimal.NewFromString(clean)
}
