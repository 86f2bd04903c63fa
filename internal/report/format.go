package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var esCO = message.NewPrinter(language.MustParse("es-CO"))

// formatAmount renders a money value for display, es-CO style with two
// decimals (1.250.000,50).
func formatAmount(v decimal.Decimal) string {
	f, _ := v.Float64()
	return esCO.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// formatQuantity renders a quantity with up to three decimals,
// dropping trailing zeros.
func formatQuantity(v decimal.Decimal) string {
	f, _ := v.Float64()
	return esCO.Sprint(number.Decimal(f, number.MaxFractionDigits(3)))
}
