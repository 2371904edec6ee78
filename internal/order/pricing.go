package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tax is a flat 10% on the order subtotal; shipping is a flat fee. Both
// mirror the store's current (deliberately simple) pricing policy.
var (
	taxRate      = decimal.NewFromFloat(0.10)
	shippingCost = decimal.RequireFromString("10.00")
)

type PriceLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// CalculateTotals computes the financial snapshot for an order. Per-line
// subtotals are exact products of unit price and quantity; rounding to two
// digits happens only on the derived tax and total fields.
func CalculateTotals(lines []PriceLine) (Totals, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity < 1 {
			return Totals{}, fmt.Errorf("pricing: quantity must be positive, got %d", line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("pricing: unit price cannot be negative, got %s", line.UnitPrice)
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	tax := subtotal.Mul(taxRate).Round(2)
	total := subtotal.Add(tax).Add(shippingCost).Round(2)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shippingCost,
		Total:    total,
	}, nil
}

// LineSubtotal is the exact price-times-quantity product for one item.
func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
