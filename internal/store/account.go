package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// AccountStore is a thread-safe in-memory store for cash accounts,
// with a primary index by account id and a secondary index by owner.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	byOwner  map[string][]string // owner_id → account ids (creation order)
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
		byOwner:  make(map[string][]string),
	}
}

// Create adds an account. It fails if the id is already taken.
func (s *AccountStore) Create(a domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("store: account %s already exists", a.ID)
	}
	s.accounts[a.ID] = &a
	s.byOwner[a.OwnerID] = append(s.byOwner[a.OwnerID], a.ID)
	return nil
}

// Get returns a copy of the account or a NotFoundError.
func (s *AccountStore) Get(id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.NotFound("account", id)
	}
	return *a, nil
}

// FindByOwnerID returns the owner's accounts in creation order, or an
// empty slice.
func (s *AccountStore) FindByOwnerID(_ context.Context, tx domain.Tx, ownerID string) ([]domain.Account, error) {
	if _, err := txFrom(tx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.accounts[id])
	}
	return out, nil
}

// UpdateBalance adds delta to the account balance.
func (s *AccountStore) UpdateBalance(_ context.Context, tx domain.Tx, accountID string, delta decimal.Decimal) error {
	return s.mutate(tx, accountID, func(a *domain.Account) error {
		a.Balance = a.Balance.Add(delta)
		return nil
	})
}

// UpdateBalanceAvailable adds delta to the available balance.
func (s *AccountStore) UpdateBalanceAvailable(_ context.Context, tx domain.Tx, accountID string, delta decimal.Decimal) error {
	return s.mutate(tx, accountID, func(a *domain.Account) error {
		a.AvailableBalance = a.AvailableBalance.Add(delta)
		return nil
	})
}

// BlockFunds reserves amount from the available balance. The balance
// itself is unchanged.
func (s *AccountStore) BlockFunds(_ context.Context, tx domain.Tx, accountID string, amount decimal.Decimal) error {
	return s.mutate(tx, accountID, func(a *domain.Account) error {
		if a.AvailableBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		a.AvailableBalance = a.AvailableBalance.Sub(amount)
		return nil
	})
}

// UnblockFunds returns a previously blocked amount to the available
// balance. It refuses to release more than is currently blocked.
func (s *AccountStore) UnblockFunds(_ context.Context, tx domain.Tx, accountID string, amount decimal.Decimal) error {
	return s.mutate(tx, accountID, func(a *domain.Account) error {
		if a.Blocked().LessThan(amount) {
			return fmt.Errorf("store: unblock %s on account %s exceeds blocked %s", amount, a.ID, a.Blocked())
		}
		a.AvailableBalance = a.AvailableBalance.Add(amount)
		return nil
	})
}

// mutate applies fn to the account under the write lock and registers the
// inverse with tx. fn must leave the account untouched when it fails.
func (s *AccountStore) mutate(tx domain.Tx, accountID string, fn func(*domain.Account) error) error {
	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return domain.NotFound("account", accountID)
	}
	prev := *a
	if err := fn(a); err != nil {
		return err
	}
	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		a.Balance = prev.Balance
		a.AvailableBalance = prev.AvailableBalance
	})
	return nil
}
