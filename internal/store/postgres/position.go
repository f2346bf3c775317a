package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// PositionStore implements domain.SecuritiesPositionRepository using
// PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// FindByCustomerIDAndShareID returns the customer's position in the share
// or a NotFoundError. Inside a transaction the row stays locked until the
// transaction ends.
func (s *PositionStore) FindByCustomerIDAndShareID(ctx context.Context, tx domain.Tx, customerID, shareID string) (domain.SecuritiesPosition, error) {
	q, inTx, err := conn(s.pool, tx)
	if err != nil {
		return domain.SecuritiesPosition{}, err
	}

	query := forUpdate(`
		SELECT id, customer_id, share_id, total_quantity, blocked_quantity
		FROM securities_positions
		WHERE customer_id = $1 AND share_id = $2`, inTx)

	var p domain.SecuritiesPosition
	err = q.QueryRow(ctx, query, customerID, shareID).Scan(
		&p.ID, &p.CustomerID, &p.ShareID, &p.TotalQuantity, &p.BlockedQuantity,
	)
	if isNoRows(err) {
		return domain.SecuritiesPosition{}, domain.NotFound("securities position", customerID+"/"+shareID)
	}
	if err != nil {
		return domain.SecuritiesPosition{}, fmt.Errorf("postgres: find position %s/%s: %w", customerID, shareID, err)
	}
	return p, nil
}

// UpdateQuantities overwrites both quantities of a position. It rejects
// values that would break 0 ≤ blocked ≤ total.
func (s *PositionStore) UpdateQuantities(ctx context.Context, tx domain.Tx, id string, totalQuantity, blockedQuantity int64) error {
	if blockedQuantity < 0 || blockedQuantity > totalQuantity {
		return fmt.Errorf("postgres: position %s: blocked quantity %d out of range [0, %d]", id, blockedQuantity, totalQuantity)
	}

	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE securities_positions SET total_quantity = $2, blocked_quantity = $3 WHERE id = $1`,
		id, totalQuantity, blockedQuantity,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("securities position", id)
	}
	return nil
}

// Save inserts a new position. A customer holds at most one position per
// share; a duplicate fails on the unique constraint.
func (s *PositionStore) Save(ctx context.Context, tx domain.Tx, p domain.SecuritiesPosition) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO securities_positions (id, customer_id, share_id, total_quantity, blocked_quantity)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := q.Exec(ctx, query, p.ID, p.CustomerID, p.ShareID, p.TotalQuantity, p.BlockedQuantity); err != nil {
		return fmt.Errorf("postgres: save position %s/%s: %w", p.CustomerID, p.ShareID, err)
	}
	return nil
}
