package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// TransactionStore implements domain.ShareTransactionRepository using
// PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Save appends a settlement record.
func (s *TransactionStore) Save(ctx context.Context, tx domain.Tx, t domain.ShareTransaction) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO share_transactions (
			id, share_id, buy_order_id, sell_order_id, buyer_id, seller_id,
			price_executed, quantity, date_executed, buyer_fee, seller_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10::numeric, $11::numeric)`

	_, err = q.Exec(ctx, query,
		t.ID, t.ShareID, t.BuyOrderID, t.SellOrderID, t.BuyerID, t.SellerID,
		t.PriceExecuted.String(), t.Quantity, t.DateExecuted, t.BuyerFee.String(), t.SellerFee.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: save transaction %s: %w", t.ID, err)
	}
	return nil
}

// ListByShareID returns the share's transactions in execution order.
func (s *TransactionStore) ListByShareID(ctx context.Context, shareID string) ([]domain.ShareTransaction, error) {
	const query = `
		SELECT id, share_id, buy_order_id, sell_order_id, buyer_id, seller_id,
			price_executed::text, quantity, date_executed, buyer_fee::text, seller_fee::text
		FROM share_transactions
		WHERE share_id = $1
		ORDER BY date_executed, id`

	rows, err := s.pool.Query(ctx, query, shareID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s: %w", shareID, err)
	}
	defer rows.Close()

	out := make([]domain.ShareTransaction, 0)
	for rows.Next() {
		var t domain.ShareTransaction
		var price, buyerFee, sellerFee string
		if err := rows.Scan(
			&t.ID, &t.ShareID, &t.BuyOrderID, &t.SellOrderID, &t.BuyerID, &t.SellerID,
			&price, &t.Quantity, &t.DateExecuted, &buyerFee, &sellerFee,
		); err != nil {
			return nil, fmt.Errorf("postgres: list transactions %s: scan: %w", shareID, err)
		}
		if t.PriceExecuted, err = parseDecimal("price_executed", price); err != nil {
			return nil, err
		}
		if t.BuyerFee, err = parseDecimal("buyer_fee", buyerFee); err != nil {
			return nil, err
		}
		if t.SellerFee, err = parseDecimal("seller_fee", sellerFee); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s: %w", shareID, err)
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.UnitOfWork                   = (*UnitOfWork)(nil)
	_ domain.ShareRepository              = (*ShareStore)(nil)
	_ domain.OrderRepository              = (*OrderStore)(nil)
	_ domain.AccountRepository            = (*AccountStore)(nil)
	_ domain.SecuritiesPositionRepository = (*PositionStore)(nil)
	_ domain.ShareTransactionRepository   = (*TransactionStore)(nil)
)
