package domain

import "github.com/shopspring/decimal"

// FeeCalculator computes the fees charged to each side of a settled match.
type FeeCalculator interface {
	Fees(price decimal.Decimal, quantity int64) (buyerFee, sellerFee decimal.Decimal)
}

// FixedFees charges the same flat amount per match regardless of size.
type FixedFees struct {
	Buyer  decimal.Decimal
	Seller decimal.Decimal
}

// DefaultFees is the flat 100/100 schedule used when nothing is configured.
var DefaultFees = FixedFees{
	Buyer:  decimal.NewFromInt(100),
	Seller: decimal.NewFromInt(100),
}

// Fees implements FeeCalculator.
func (f FixedFees) Fees(decimal.Decimal, int64) (decimal.Decimal, decimal.Decimal) {
	return f.Buyer, f.Seller
}
