package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Tx is an atomic unit of work spanning several repository mutations.
// Rollback after Commit is a no-op, so callers may always defer it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWork opens transaction scopes. The repositories of one storage
// backend only accept the Tx values produced by that backend's UnitOfWork.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

// Every repository method takes a tx; nil means the call runs outside any
// transaction. Missing rows are reported as *NotFoundError.

// ShareRepository reads share metadata and records executed prices.
type ShareRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (Share, error)
	UpdateLastExecutedPrice(ctx context.Context, tx Tx, id string, price decimal.Decimal) error
}

// OrderRepository persists orders.
type OrderRepository interface {
	// FindActiveByShareID returns all ACTIVE orders of a share in
	// submission order.
	FindActiveByShareID(ctx context.Context, tx Tx, shareID string) ([]Order, error)
	// FindActiveByShareIDAndDirection returns ACTIVE orders of one side in
	// price priority (BUY: highest first, SELL: lowest first), then
	// submission order.
	FindActiveByShareIDAndDirection(ctx context.Context, tx Tx, shareID string, direction Direction) ([]Order, error)
	Save(ctx context.Context, tx Tx, order Order) error
	UpdateStatus(ctx context.Context, tx Tx, id string, status OrderStatus) error
	UpdateBlockedAmount(ctx context.Context, tx Tx, id string, amount decimal.Decimal) error
	UpdateRemainingQuantity(ctx context.Context, tx Tx, id string, remaining int64) error
}

// AccountRepository mutates cash accounts by deltas.
type AccountRepository interface {
	// FindByOwnerID returns an empty slice when the owner has no accounts.
	FindByOwnerID(ctx context.Context, tx Tx, ownerID string) ([]Account, error)
	UpdateBalance(ctx context.Context, tx Tx, accountID string, delta decimal.Decimal) error
	UpdateBalanceAvailable(ctx context.Context, tx Tx, accountID string, delta decimal.Decimal) error
	// BlockFunds decreases the available balance by amount. It returns
	// ErrInsufficientFunds, and changes nothing, if not enough is available.
	BlockFunds(ctx context.Context, tx Tx, accountID string, amount decimal.Decimal) error
	UnblockFunds(ctx context.Context, tx Tx, accountID string, amount decimal.Decimal) error
}

// SecuritiesPositionRepository persists customer holdings.
type SecuritiesPositionRepository interface {
	FindByCustomerIDAndShareID(ctx context.Context, tx Tx, customerID, shareID string) (SecuritiesPosition, error)
	UpdateQuantities(ctx context.Context, tx Tx, id string, totalQuantity, blockedQuantity int64) error
	Save(ctx context.Context, tx Tx, position SecuritiesPosition) error
}

// ShareTransactionRepository appends settlement records.
type ShareTransactionRepository interface {
	Save(ctx context.Context, tx Tx, transaction ShareTransaction) error
}

// Repositories bundles the stores the trading core depends on.
type Repositories struct {
	Shares       ShareRepository
	Orders       OrderRepository
	Accounts     AccountRepository
	Positions    SecuritiesPositionRepository
	Transactions ShareTransactionRepository
	UnitOfWork   UnitOfWork
}
