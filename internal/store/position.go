package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// PositionStore is a thread-safe in-memory store for securities positions,
// indexed by id and by (customer, share).
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]*domain.SecuritiesPosition
	byKey     map[string]string // customer_id/share_id → position id
}

// NewPositionStore creates an empty PositionStore.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		positions: make(map[string]*domain.SecuritiesPosition),
		byKey:     make(map[string]string),
	}
}

func positionKey(customerID, shareID string) string {
	return customerID + "/" + shareID
}

// FindByCustomerIDAndShareID returns the customer's position in the share
// or a NotFoundError.
func (s *PositionStore) FindByCustomerIDAndShareID(_ context.Context, tx domain.Tx, customerID, shareID string) (domain.SecuritiesPosition, error) {
	if _, err := txFrom(tx); err != nil {
		return domain.SecuritiesPosition{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[positionKey(customerID, shareID)]
	if !ok {
		return domain.SecuritiesPosition{}, domain.NotFound("securities position", positionKey(customerID, shareID))
	}
	return *s.positions[id], nil
}

// UpdateQuantities overwrites both quantities of a position. It rejects
// values that would break 0 ≤ blocked ≤ total.
func (s *PositionStore) UpdateQuantities(_ context.Context, tx domain.Tx, id string, totalQuantity, blockedQuantity int64) error {
	if blockedQuantity < 0 || blockedQuantity > totalQuantity {
		return fmt.Errorf("store: position %s: blocked quantity %d out of range [0, %d]", id, blockedQuantity, totalQuantity)
	}

	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return domain.NotFound("securities position", id)
	}
	prevTotal, prevBlocked := p.TotalQuantity, p.BlockedQuantity
	p.TotalQuantity = totalQuantity
	p.BlockedQuantity = blockedQuantity
	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		p.TotalQuantity = prevTotal
		p.BlockedQuantity = prevBlocked
	})
	return nil
}

// Save inserts a new position. A customer holds at most one position per
// share.
func (s *PositionStore) Save(_ context.Context, tx domain.Tx, position domain.SecuritiesPosition) error {
	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey(position.CustomerID, position.ShareID)
	if _, exists := s.byKey[key]; exists {
		return fmt.Errorf("store: position %s already exists", key)
	}
	if _, exists := s.positions[position.ID]; exists {
		return fmt.Errorf("store: position id %s already exists", position.ID)
	}
	s.positions[position.ID] = &position
	s.byKey[key] = position.ID

	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.positions, position.ID)
		delete(s.byKey, key)
	})
	return nil
}
