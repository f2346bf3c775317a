package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether an order buys or sells securities.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionBuy, DirectionSell:
		return true
	default:
		return false
	}
}

// ParseDirection converts a wire value into a Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return d, nil
}

// OrderStatus represents the lifecycle state of an order.
// ACTIVE is the only non-terminal state.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusActive, OrderStatusExecuted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts a stored value into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// Validity is the time-in-force policy of an order.
type Validity string

const (
	ValidityDay            Validity = "DAY"
	ValidityUntilCancelled Validity = "UNTIL_CANCELLED"
)

// Valid reports whether v is one of the known validities.
func (v Validity) Valid() bool {
	switch v {
	case ValidityDay, ValidityUntilCancelled:
		return true
	default:
		return false
	}
}

// ParseValidity converts a wire value into a Validity.
func ParseValidity(s string) (Validity, error) {
	v := Validity(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidValidity, s)
	}
	return v, nil
}

// Order is a customer's instruction to buy or sell a share at a limit price.
//
// Quantity is the originally requested amount; RemainingQuantity is what
// is still open after partial fills. BlockedAmount is the cash reserved
// for a BUY order (PriceLimit × RemainingQuantity). For SELL orders it is
// informational only, the reservation lives on the securities position.
type Order struct {
	ID                string
	CustomerID        string
	ShareID           string
	Direction         Direction
	Quantity          int64
	RemainingQuantity int64
	PriceLimit        decimal.Decimal
	Validity          Validity
	Status            OrderStatus
	DateCaptured      time.Time
	BlockedAmount     decimal.Decimal
}

// Active reports whether the order still participates in matching.
func (o Order) Active() bool {
	return o.Status == OrderStatusActive
}

// FilledQuantity returns how much of the order has been executed.
func (o Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}
