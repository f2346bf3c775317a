package domain

import "github.com/google/uuid"

// SecuritiesPosition is a customer's holding of a single share.
// BlockedQuantity is reserved by active sell orders and never exceeds
// TotalQuantity.
type SecuritiesPosition struct {
	ID              string
	CustomerID      string
	ShareID         string
	TotalQuantity   int64
	BlockedQuantity int64
}

// NewSecuritiesPosition creates an unblocked position holding quantity
// shares. Used when a customer receives a share for the first time.
func NewSecuritiesPosition(customerID, shareID string, quantity int64) SecuritiesPosition {
	return SecuritiesPosition{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		ShareID:       shareID,
		TotalQuantity: quantity,
	}
}

// Available returns the quantity not reserved by sell orders.
func (p SecuritiesPosition) Available() int64 {
	return p.TotalQuantity - p.BlockedQuantity
}
