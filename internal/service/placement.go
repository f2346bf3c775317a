package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	CustomerID string
	ShareID    string
	Direction  domain.Direction
	Quantity   int64
	PriceLimit decimal.Decimal
	Validity   domain.Validity
}

func (r PlaceOrderRequest) validate() error {
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if !r.PriceLimit.IsPositive() {
		return domain.ErrInvalidPriceLimit
	}
	if !domain.HasAmountScale(r.PriceLimit) {
		return domain.ErrInvalidPriceScale
	}
	if !r.Direction.Valid() {
		return domain.ErrInvalidDirection
	}
	if !r.Validity.Valid() {
		return domain.ErrInvalidValidity
	}
	return nil
}

// OrderPlacement accepts new orders and reserves what they need: cash for
// a BUY, securities for a SELL. The reservation and the order insert are
// applied in one transaction.
type OrderPlacement struct {
	repos  domain.Repositories
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderPlacement creates an OrderPlacement with the given dependencies.
func NewOrderPlacement(repos domain.Repositories, logger *slog.Logger) *OrderPlacement {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderPlacement{
		repos:  repos,
		logger: logger.With(slog.String("component", "placement")),
		now:    time.Now,
	}
}

// Execute validates the request, reserves funds or securities and persists
// an ACTIVE order. It fails fast on the first violated precondition and
// leaves no side effects on failure.
func (p *OrderPlacement) Execute(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if err := req.validate(); err != nil {
		return domain.Order{}, err
	}

	share, err := p.repos.Shares.FindByID(ctx, nil, req.ShareID)
	if err != nil {
		return domain.Order{}, err
	}
	if !share.Tradable() {
		return domain.Order{}, domain.ErrShareNotTradable
	}

	accounts, err := p.repos.Accounts.FindByOwnerID(ctx, nil, req.CustomerID)
	if err != nil {
		return domain.Order{}, err
	}
	account, ok := domain.TradingAccount(accounts)
	if !ok {
		return domain.Order{}, domain.NotFound("trading account", req.CustomerID)
	}

	tx, err := p.repos.UnitOfWork.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("service: begin placement: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	order := domain.Order{
		ID:                uuid.New().String(),
		CustomerID:        req.CustomerID,
		ShareID:           share.ID,
		Direction:         req.Direction,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		PriceLimit:        req.PriceLimit,
		Validity:          req.Validity,
		Status:            domain.OrderStatusActive,
		DateCaptured:      p.now(),
	}

	switch req.Direction {
	case domain.DirectionBuy:
		order.BlockedAmount = domain.Notional(req.PriceLimit, req.Quantity)
		if err := p.repos.Accounts.BlockFunds(ctx, tx, account.ID, order.BlockedAmount); err != nil {
			return domain.Order{}, err
		}
	case domain.DirectionSell:
		if err := p.blockSecurities(ctx, tx, req); err != nil {
			return domain.Order{}, err
		}
		// Informational only: the reservation lives on the position.
		order.BlockedAmount = domain.Notional(share.CurrentPrice(), req.Quantity)
	default:
		return domain.Order{}, domain.ErrInvalidDirection
	}

	if err := p.repos.Orders.Save(ctx, tx, order); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("service: commit placement: %w", err)
	}

	p.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("share_id", order.ShareID),
		slog.String("customer_id", order.CustomerID),
		slog.String("direction", string(order.Direction)),
		slog.Int64("quantity", order.Quantity),
		slog.String("price_limit", order.PriceLimit.String()),
	)
	return order, nil
}

func (p *OrderPlacement) blockSecurities(ctx context.Context, tx domain.Tx, req PlaceOrderRequest) error {
	pos, err := p.repos.Positions.FindByCustomerIDAndShareID(ctx, tx, req.CustomerID, req.ShareID)
	if domain.IsNotFound(err) {
		return fmt.Errorf("%w: no position in %s", domain.ErrInsufficientSecurities, req.ShareID)
	}
	if err != nil {
		return err
	}
	if pos.Available() < req.Quantity {
		return fmt.Errorf("%w: %d available, %d requested", domain.ErrInsufficientSecurities, pos.Available(), req.Quantity)
	}
	return p.repos.Positions.UpdateQuantities(ctx, tx, pos.ID, pos.TotalQuantity, pos.BlockedQuantity+req.Quantity)
}
