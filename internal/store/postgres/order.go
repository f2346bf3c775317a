package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// OrderStore implements domain.OrderRepository using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `id, customer_id, share_id, direction, quantity, remaining_quantity,
	price_limit::text, validity, status, date_captured, blocked_amount::text`

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var direction, validity, status, limit, blocked string

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ShareID, &direction, &o.Quantity, &o.RemainingQuantity,
		&limit, &validity, &status, &o.DateCaptured, &blocked,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Direction = domain.Direction(direction)
	o.Validity = domain.Validity(validity)
	if o.Status, err = domain.ParseOrderStatus(status); err != nil {
		return domain.Order{}, fmt.Errorf("postgres: order %s: %w", o.ID, err)
	}
	if o.PriceLimit, err = parseDecimal("price_limit", limit); err != nil {
		return domain.Order{}, err
	}
	if o.BlockedAmount, err = parseDecimal("blocked_amount", blocked); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *OrderStore) list(ctx context.Context, tx domain.Tx, op, query string, args ...any) ([]domain.Order, error) {
	q, inTx, err := conn(s.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, forUpdate(query, inTx), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", op, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return orders, nil
}

// Get returns the order with the given id or a NotFoundError.
func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE id = $1`
	o, err := scanOrder(s.pool.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return domain.Order{}, domain.NotFound("order", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// FindActiveByShareID returns the share's ACTIVE orders in submission order.
func (s *OrderStore) FindActiveByShareID(ctx context.Context, tx domain.Tx, shareID string) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders
		WHERE share_id = $1 AND status = 'ACTIVE'
		ORDER BY seq`
	return s.list(ctx, tx, "find active orders "+shareID, query, shareID)
}

// FindActiveByShareIDAndDirection returns one side of the share's book in
// price priority, then time, then submission order.
func (s *OrderStore) FindActiveByShareIDAndDirection(ctx context.Context, tx domain.Tx, shareID string, direction domain.Direction) ([]domain.Order, error) {
	var priceOrder string
	switch direction {
	case domain.DirectionBuy:
		priceOrder = "price_limit DESC"
	case domain.DirectionSell:
		priceOrder = "price_limit ASC"
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDirection, direction)
	}

	query := `SELECT ` + orderSelectCols + `
		FROM orders
		WHERE share_id = $1 AND direction = $2 AND status = 'ACTIVE'
		ORDER BY ` + priceOrder + `, date_captured, seq`
	return s.list(ctx, tx, "find active "+string(direction)+" orders "+shareID, query, shareID, string(direction))
}

// Save inserts a new order.
func (s *OrderStore) Save(ctx context.Context, tx domain.Tx, o domain.Order) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO orders (
			id, customer_id, share_id, direction, quantity, remaining_quantity,
			price_limit, validity, status, date_captured, blocked_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11::numeric)`

	_, err = q.Exec(ctx, query,
		o.ID, o.CustomerID, o.ShareID, string(o.Direction), o.Quantity, o.RemainingQuantity,
		o.PriceLimit.String(), string(o.Validity), string(o.Status), o.DateCaptured, o.BlockedAmount.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: save order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateStatus sets the order status.
func (s *OrderStore) UpdateStatus(ctx context.Context, tx domain.Tx, id string, status domain.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("postgres: invalid order status %q", status)
	}
	return s.update(ctx, tx, "update order status", `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
}

// UpdateBlockedAmount sets the amount reserved against the order.
func (s *OrderStore) UpdateBlockedAmount(ctx context.Context, tx domain.Tx, id string, amount decimal.Decimal) error {
	return s.update(ctx, tx, "update blocked amount", `UPDATE orders SET blocked_amount = $2::numeric WHERE id = $1`, id, amount.String())
}

// UpdateRemainingQuantity sets the open quantity of the order.
func (s *OrderStore) UpdateRemainingQuantity(ctx context.Context, tx domain.Tx, id string, remaining int64) error {
	return s.update(ctx, tx, "update remaining quantity", `UPDATE orders SET remaining_quantity = $2 WHERE id = $1`, id, remaining)
}

func (s *OrderStore) update(ctx context.Context, tx domain.Tx, op, query, id string, value any) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("postgres: %s %s: %w", op, id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("order", id)
	}
	return nil
}
