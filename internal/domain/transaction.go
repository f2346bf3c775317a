package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShareTransaction is the append-only record of one settled match.
type ShareTransaction struct {
	ID            string
	ShareID       string
	BuyOrderID    string
	SellOrderID   string
	BuyerID       string
	SellerID      string
	PriceExecuted decimal.Decimal
	Quantity      int64
	DateExecuted  time.Time
	BuyerFee      decimal.Decimal
	SellerFee     decimal.Decimal
}

// Value returns PriceExecuted × Quantity, excluding fees.
func (t ShareTransaction) Value() decimal.Decimal {
	return Notional(t.PriceExecuted, t.Quantity)
}

// BuyerDebit is the total amount taken from the buyer's balance.
func (t ShareTransaction) BuyerDebit() decimal.Decimal {
	return t.Value().Add(t.BuyerFee)
}

// SellerCredit is the total amount added to the seller's balance.
func (t ShareTransaction) SellerCredit() decimal.Decimal {
	return t.Value().Sub(t.SellerFee)
}
