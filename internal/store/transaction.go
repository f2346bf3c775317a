package store

import (
	"context"
	"slices"
	"sync"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// TransactionStore is a thread-safe in-memory store for share transactions,
// keyed by share. Transactions are append-only and chronological.
type TransactionStore struct {
	mu           sync.RWMutex
	transactions map[string][]domain.ShareTransaction // share_id → transactions
}

// NewTransactionStore creates an empty TransactionStore.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		transactions: make(map[string][]domain.ShareTransaction),
	}
}

// Save appends a transaction to the share's chronological list.
func (s *TransactionStore) Save(_ context.Context, tx domain.Tx, t domain.ShareTransaction) error {
	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[t.ShareID] = append(s.transactions[t.ShareID], t)
	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.transactions[t.ShareID]
		if i := slices.IndexFunc(list, func(x domain.ShareTransaction) bool { return x.ID == t.ID }); i >= 0 {
			s.transactions[t.ShareID] = slices.Delete(list, i, i+1)
		}
	})
	return nil
}

// ListByShareID returns a copy of all transactions for a share in
// chronological order. Returns an empty slice if there are none.
func (s *TransactionStore) ListByShareID(shareID string) []domain.ShareTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.transactions[shareID]
	out := make([]domain.ShareTransaction, len(list))
	copy(out, list)
	return out
}
