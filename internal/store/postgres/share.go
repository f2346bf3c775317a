package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// ShareStore implements domain.ShareRepository using PostgreSQL.
type ShareStore struct {
	pool *pgxpool.Pool
}

// NewShareStore creates a new ShareStore backed by the given connection pool.
func NewShareStore(pool *pgxpool.Pool) *ShareStore {
	return &ShareStore{pool: pool}
}

// Create lists a new share.
func (s *ShareStore) Create(ctx context.Context, sh domain.Share) error {
	const query = `
		INSERT INTO shares (id, name, total_number_of_parts, initial_price, last_executed_price, suspended)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)`

	_, err := s.pool.Exec(ctx, query,
		sh.ID, sh.Name, sh.TotalNumberOfParts,
		sh.InitialPrice.String(), sh.LastExecutedPrice.String(), sh.Suspended,
	)
	if err != nil {
		return fmt.Errorf("postgres: create share %s: %w", sh.ID, err)
	}
	return nil
}

// FindByID returns the share or a NotFoundError.
func (s *ShareStore) FindByID(ctx context.Context, tx domain.Tx, id string) (domain.Share, error) {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return domain.Share{}, err
	}

	const query = `
		SELECT id, name, total_number_of_parts, initial_price::text, last_executed_price::text, suspended
		FROM shares WHERE id = $1`

	var sh domain.Share
	var initial, last string
	err = q.QueryRow(ctx, query, id).Scan(
		&sh.ID, &sh.Name, &sh.TotalNumberOfParts, &initial, &last, &sh.Suspended,
	)
	if isNoRows(err) {
		return domain.Share{}, domain.NotFound("share", id)
	}
	if err != nil {
		return domain.Share{}, fmt.Errorf("postgres: find share %s: %w", id, err)
	}

	if sh.InitialPrice, err = parseDecimal("initial_price", initial); err != nil {
		return domain.Share{}, err
	}
	if sh.LastExecutedPrice, err = parseDecimal("last_executed_price", last); err != nil {
		return domain.Share{}, err
	}
	return sh, nil
}

// UpdateLastExecutedPrice records the price of the latest settlement.
func (s *ShareStore) UpdateLastExecutedPrice(ctx context.Context, tx domain.Tx, id string, price decimal.Decimal) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`UPDATE shares SET last_executed_price = $2::numeric WHERE id = $1`,
		id, price.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: update last executed price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("share", id)
	}
	return nil
}
