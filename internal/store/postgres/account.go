package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// AccountStore implements domain.AccountRepository using PostgreSQL.
// Balance changes are applied as deltas in SQL, never as read-modify-write.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Create opens an account.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (id, owner_id, type, balance, available_balance)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.OwnerID, string(a.Type), a.Balance.String(), a.AvailableBalance.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the account with the given id or a NotFoundError.
func (s *AccountStore) Get(ctx context.Context, id string) (domain.Account, error) {
	const query = `
		SELECT id, owner_id, type, balance::text, available_balance::text
		FROM accounts WHERE id = $1`

	a, err := scanAccount(s.pool.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return domain.Account{}, domain.NotFound("account", id)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, err)
	}
	return a, nil
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var a domain.Account
	var typ, balance, available string
	if err := row.Scan(&a.ID, &a.OwnerID, &typ, &balance, &available); err != nil {
		return domain.Account{}, err
	}

	var err error
	if a.Type, err = domain.ParseAccountType(typ); err != nil {
		return domain.Account{}, fmt.Errorf("postgres: account %s: %w", a.ID, err)
	}
	if a.Balance, err = parseDecimal("balance", balance); err != nil {
		return domain.Account{}, err
	}
	if a.AvailableBalance, err = parseDecimal("available_balance", available); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// FindByOwnerID returns the owner's accounts, an empty slice when there
// are none.
func (s *AccountStore) FindByOwnerID(ctx context.Context, tx domain.Tx, ownerID string) ([]domain.Account, error) {
	q, inTx, err := conn(s.pool, tx)
	if err != nil {
		return nil, err
	}

	query := forUpdate(`
		SELECT id, owner_id, type, balance::text, available_balance::text
		FROM accounts WHERE owner_id = $1
		ORDER BY id`, inTx)

	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: find accounts of %s: %w", ownerID, err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: find accounts of %s: scan: %w", ownerID, err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find accounts of %s: %w", ownerID, err)
	}
	return accounts, nil
}

// UpdateBalance adds delta to the balance.
func (s *AccountStore) UpdateBalance(ctx context.Context, tx domain.Tx, accountID string, delta decimal.Decimal) error {
	return s.apply(ctx, tx, "update balance", accountID,
		`UPDATE accounts SET balance = balance + $2::numeric WHERE id = $1`, delta)
}

// UpdateBalanceAvailable adds delta to the available balance.
func (s *AccountStore) UpdateBalanceAvailable(ctx context.Context, tx domain.Tx, accountID string, delta decimal.Decimal) error {
	return s.apply(ctx, tx, "update available balance", accountID,
		`UPDATE accounts SET available_balance = available_balance + $2::numeric WHERE id = $1`, delta)
}

// BlockFunds reserves amount from the available balance. The guard and the
// decrement are one statement, so two concurrent placements cannot both
// pass the check.
func (s *AccountStore) BlockFunds(ctx context.Context, tx domain.Tx, accountID string, amount decimal.Decimal) error {
	err := s.apply(ctx, tx, "block funds", accountID,
		`UPDATE accounts SET available_balance = available_balance - $2::numeric
		 WHERE id = $1 AND available_balance >= $2::numeric`, amount)
	if domain.IsNotFound(err) {
		return s.explain(ctx, tx, accountID, domain.ErrInsufficientFunds)
	}
	return err
}

// UnblockFunds returns a previously blocked amount to the available
// balance. It refuses to release more than is currently blocked.
func (s *AccountStore) UnblockFunds(ctx context.Context, tx domain.Tx, accountID string, amount decimal.Decimal) error {
	err := s.apply(ctx, tx, "unblock funds", accountID,
		`UPDATE accounts SET available_balance = available_balance + $2::numeric
		 WHERE id = $1 AND balance - available_balance >= $2::numeric`, amount)
	if domain.IsNotFound(err) {
		return s.explain(ctx, tx, accountID,
			fmt.Errorf("postgres: unblock %s on account %s exceeds blocked amount", amount, accountID))
	}
	return err
}

// apply runs a single-row update and reports a missing row as NotFound.
func (s *AccountStore) apply(ctx context.Context, tx domain.Tx, op, accountID, query string, amount decimal.Decimal) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, query, accountID, amount.String())
	if err != nil {
		return fmt.Errorf("postgres: %s %s: %w", op, accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("account", accountID)
	}
	return nil
}

// explain distinguishes a missing account from a failed guard after a
// conditional update touched no row.
func (s *AccountStore) explain(ctx context.Context, tx domain.Tx, accountID string, guardErr error) error {
	q, _, err := conn(s.pool, tx)
	if err != nil {
		return err
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check account %s: %w", accountID, err)
	}
	if !exists {
		return domain.NotFound("account", accountID)
	}
	return guardErr
}
