package domain

import (
	"errors"
	"fmt"
)

// ValidationError represents a violated business precondition.
// The controller layer maps it to a 4xx response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a missing share, account, position or order.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and key.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Sentinel validation errors. They are *ValidationError values, so both
// errors.Is against the sentinel and errors.As to *ValidationError work.
var (
	ErrInvalidQuantity        = &ValidationError{Message: "quantity must be a positive integer"}
	ErrInvalidPriceLimit      = &ValidationError{Message: "price limit must be greater than 0"}
	ErrInvalidPriceScale      = &ValidationError{Message: "price limit must have at most 2 decimal places"}
	ErrInvalidDirection       = &ValidationError{Message: "direction must be BUY or SELL"}
	ErrInvalidValidity        = &ValidationError{Message: "validity must be DAY or UNTIL_CANCELLED"}
	ErrInsufficientFunds      = &ValidationError{Message: "insufficient funds"}
	ErrInsufficientSecurities = &ValidationError{Message: "insufficient unblocked securities"}
	ErrShareNotTradable       = &ValidationError{Message: "share is not tradable"}
)

// Infrastructure errors. Callers should treat these as retryable/unavailable.
var (
	ErrTxDone          = errors.New("transaction already committed or rolled back")
	ErrMatchInProgress = errors.New("matching already in progress for share")
)

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
