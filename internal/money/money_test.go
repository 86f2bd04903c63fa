package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$ 1.234.567", "1234567.00"},
		{"250000,50", "250000.50"},
		{"250000", "250000.00"},
		{"1,234,567.89", "1234567.89"},
		{"$1.234.567,5", "1234567.50"},
		{"1.234", "1234.00"},
		{"0", "0.00"},
		{"", "0.00"},
		{".5", "0.50"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got.StringFixed(2), "input %q", tc.in)
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"abc", "12a34", "-500", "1.2.3a"} {
		_, err := ParseAmount(in)
		require.ErrorIs(t, err, shared.ErrValidation, "input %q", in)
	}
}

func TestQuantityClampsNegative(t *testing.T) {
	require.True(t, Quantity(decimal.NewFromInt(-3)).IsZero())
	require.Equal(t, "2.500", Quantity(decimal.RequireFromString("2.4999")).StringFixed(3))
}
