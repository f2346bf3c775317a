package domain

import "github.com/shopspring/decimal"

// Share is a listed security. LastExecutedPrice is zero until the first
// settlement and is only written by the matching engine.
type Share struct {
	ID                 string
	Name               string
	TotalNumberOfParts int64
	InitialPrice       decimal.Decimal
	LastExecutedPrice  decimal.Decimal
	Suspended          bool
}

// CurrentPrice returns the last executed price, or the initial price when
// the share has never traded.
func (s Share) CurrentPrice() decimal.Decimal {
	if s.LastExecutedPrice.IsPositive() {
		return s.LastExecutedPrice
	}
	return s.InitialPrice
}

// Tradable reports whether new orders may be placed for the share.
func (s Share) Tradable() bool {
	return !s.Suspended && s.TotalNumberOfParts > 0
}
