package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Notional returns price × quantity.
func Notional(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}

// AmountScale is the number of decimal places a monetary amount may carry.
const AmountScale = 2

// HasAmountScale reports whether d has no more than AmountScale decimals.
func HasAmountScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(AmountScale))
}

// ParseAmount parses a decimal monetary amount such as "150.25".
// It rejects more than 2 decimal places and negative values.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q must not be negative", s)
	}
	if !HasAmountScale(d) {
		return decimal.Zero, fmt.Errorf("amount %q must have at most 2 decimal places", s)
	}
	return d, nil
}
