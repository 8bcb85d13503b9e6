package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxRate is applied to the subtotal. Tax is rounded to cents, half-up.
var TaxRate = decimal.RequireFromString("0.05")

const moneyPlaces = 2

// RecomputeTotals overwrites Subtotal, Tax and Total from Items and Shipping.
// It must run before every save of an order whose items or shipping changed.
// On error the order is left untouched.
func (o *Order) RecomputeTotals() error {
	subtotal := decimal.Zero
	for i, it := range o.Items {
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d (%s) unit price %s", ErrInvalidLineItem, i, it.Name, it.UnitPrice)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: item %d (%s) quantity %d", ErrInvalidLineItem, i, it.Name, it.Quantity)
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if o.Shipping.IsNegative() {
		return fmt.Errorf("%w: shipping %s", ErrInvalidOrder, o.Shipping)
	}
	if !o.Shipping.Equal(o.Shipping.Round(moneyPlaces)) {
		return fmt.Errorf("%w: shipping %s has fractions of a cent", ErrInvalidOrder, o.Shipping)
	}

	// decimal.Round rounds half away from zero, i.e. half-up for non-negative amounts.
	tax := subtotal.Mul(TaxRate).Round(moneyPlaces)

	o.Subtotal = subtotal
	o.Tax = tax
	o.Total = subtotal.Add(tax).Add(o.Shipping)
	return nil
}

type ShippingPolicy struct {
	FlatFee decimal.Decimal
	// FreeFrom waives the fee when the subtotal reaches it. Zero disables it.
	FreeFrom decimal.Decimal
}

func (p ShippingPolicy) Quote(subtotal decimal.Decimal) decimal.Decimal {
	if p.FreeFrom.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeFrom) {
		return decimal.Zero
	}
	return p.FlatFee
}

// ItemsSubtotal sums items without validating them; used to quote shipping
// before RecomputeTotals runs.
func ItemsSubtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}
