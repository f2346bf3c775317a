package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// UnitOfWork opens database transactions for the stores of this package.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork creates a UnitOfWork backed by the given connection pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Begin starts a READ COMMITTED transaction. Rows a transaction modifies are
// locked with SELECT ... FOR UPDATE or by the UPDATE itself, so concurrent
// runs touching the same account or position wait for each other.
func (u *UnitOfWork) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx adapts pgx.Tx to domain.Tx.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return domain.ErrTxDone
		}
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op once the transaction has
// finished.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// conn picks the querier for a call: the transaction when one is given,
// otherwise the pool.
func conn(pool *pgxpool.Pool, tx domain.Tx) (querier, bool, error) {
	if tx == nil {
		return pool, false, nil
	}
	t, ok := tx.(*Tx)
	if !ok {
		return nil, false, fmt.Errorf("postgres: foreign transaction type %T", tx)
	}
	if t == nil {
		return pool, false, nil
	}
	return t.tx, true, nil
}

// forUpdate appends a row lock clause to query when it runs inside a
// transaction.
func forUpdate(query string, inTx bool) string {
	if inTx {
		return query + " FOR UPDATE"
	}
	return query
}
