// Package money parses loosely formatted monetary input as entered by
// purchasing staff: "$ 1.234.567", "250000,50", "1,234,567.89" and
// plain "250000" are all accepted.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// PriceScale is the fixed scale for monetary values.
const PriceScale = 2

// QuantityScale is the fixed scale for quantities.
const QuantityScale = 3

// ParseAmount normalises a locale-formatted amount and returns it at
// PriceScale. The last '.' or ',' counts as the decimal separator only
// when followed by one or two digits; every other separator is a
// thousands mark. Negative or non-numeric input is rejected with a
// validation error.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero.Round(PriceScale), nil
	}

	intPart, fracPart := splitSeparators(s)
	if intPart == "" && fracPart == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: monto vacío %q", shared.ErrValidation, raw)
	}

	normalized := intPart
	if fracPart != "" {
		normalized = intPart + "." + fracPart
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: monto inválido %q", shared.ErrValidation, raw)
	}
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: monto negativo %q", shared.ErrValidation, raw)
	}
	return value.Round(PriceScale), nil
}

// splitSeparators removes thousands marks and splits off a decimal
// fraction when the trailing separator plausibly introduces one.
func splitSeparators(s string) (intPart, fracPart string) {
	lastSep := strings.LastIndexAny(s, ".,")
	if lastSep < 0 {
		return s, ""
	}
	tail := s[lastSep+1:]
	if n := len(tail); n >= 1 && n <= 2 && isDigits(tail) {
		intPart = stripSeparators(s[:lastSep])
		return intPart, tail
	}
	return stripSeparators(s), ""
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", "")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Quantity rounds v to the fixed quantity scale, clamping negatives to
// zero. Shortfall quantities are never negative.
func Quantity(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero.Round(QuantityScale)
	}
	return v.Round(QuantityScale)
}
