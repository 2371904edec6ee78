package order_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artisansalley/backend/internal/order"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name         string
		lines        []order.PriceLine
		wantSubtotal string
		wantTax      string
		wantShipping string
		wantTotal    string
	}{
		{
			name:         "single_line_round_numbers",
			lines:        []order.PriceLine{{UnitPrice: d("100.00"), Quantity: 1}},
			wantSubtotal: "100.00",
			wantTax:      "10.00",
			wantShipping: "10.00",
			wantTotal:    "120.00",
		},
		{
			name: "two_products",
			lines: []order.PriceLine{
				{UnitPrice: d("50.00"), Quantity: 2},
				{UnitPrice: d("25.00"), Quantity: 1},
			},
			wantSubtotal: "125.00",
			wantTax:      "12.50",
			wantShipping: "10.00",
			wantTotal:    "147.50",
		},
		{
			name:         "tax_rounding_only_on_final_fields",
			lines:        []order.PriceLine{{UnitPrice: d("0.33"), Quantity: 1}},
			wantSubtotal: "0.33",
			wantTax:      "0.03",
			wantShipping: "10.00",
			wantTotal:    "10.36",
		},
		{
			name: "quantity_multiplies_exactly",
			lines: []order.PriceLine{
				{UnitPrice: d("19.99"), Quantity: 3},
			},
			wantSubtotal: "59.97",
			wantTax:      "6.00",
			wantShipping: "10.00",
			wantTotal:    "75.97",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := order.CalculateTotals(tt.lines)
			require.NoError(t, err)
			assert.True(t, totals.Subtotal.Equal(d(tt.wantSubtotal)), "subtotal: got %s", totals.Subtotal)
			assert.True(t, totals.Tax.Equal(d(tt.wantTax)), "tax: got %s", totals.Tax)
			assert.True(t, totals.Shipping.Equal(d(tt.wantShipping)), "shipping: got %s", totals.Shipping)
			assert.True(t, totals.Total.Equal(d(tt.wantTotal)), "total: got %s", totals.Total)
		})
	}
}

func TestCalculateTotals_TotalIsSumOfParts(t *testing.T) {
	totals, err := order.CalculateTotals([]order.PriceLine{
		{UnitPrice: d("13.37"), Quantity: 7},
		{UnitPrice: d("0.01"), Quantity: 3},
	})
	require.NoError(t, err)
	assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax).Add(totals.Shipping)),
		"total %s must equal subtotal %s + tax %s + shipping %s",
		totals.Total, totals.Subtotal, totals.Tax, totals.Shipping)
}

func TestCalculateTotals_InvalidInput(t *testing.T) {
	_, err := order.CalculateTotals([]order.PriceLine{{UnitPrice: d("10.00"), Quantity: 0}})
	assert.Error(t, err)

	_, err = order.CalculateTotals([]order.PriceLine{{UnitPrice: d("-1.00"), Quantity: 1}})
	assert.Error(t, err)
}

func TestLineSubtotal(t *testing.T) {
	assert.True(t, order.LineSubtotal(d("50.00"), 2).Equal(d("100.00")))
	assert.True(t, order.LineSubtotal(d("0.10"), 3).Equal(d("0.30")))
}
