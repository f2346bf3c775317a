package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// ShareStore is a thread-safe in-memory share registry, keyed by share id.
type ShareStore struct {
	mu     sync.RWMutex
	shares map[string]*domain.Share
}

// NewShareStore creates an empty ShareStore.
func NewShareStore() *ShareStore {
	return &ShareStore{
		shares: make(map[string]*domain.Share),
	}
}

// Create registers a share. It fails if the id is already taken.
func (s *ShareStore) Create(share domain.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shares[share.ID]; exists {
		return fmt.Errorf("store: share %s already exists", share.ID)
	}
	s.shares[share.ID] = &share
	return nil
}

// FindByID returns a copy of the share or a NotFoundError.
func (s *ShareStore) FindByID(_ context.Context, tx domain.Tx, id string) (domain.Share, error) {
	if _, err := txFrom(tx); err != nil {
		return domain.Share{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shares[id]
	if !ok {
		return domain.Share{}, domain.NotFound("share", id)
	}
	return *sh, nil
}

// UpdateLastExecutedPrice records the price of the latest settlement.
func (s *ShareStore) UpdateLastExecutedPrice(_ context.Context, tx domain.Tx, id string, price decimal.Decimal) error {
	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shares[id]
	if !ok {
		return domain.NotFound("share", id)
	}
	prev := sh.LastExecutedPrice
	sh.LastExecutedPrice = price
	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sh.LastExecutedPrice = prev
	})
	return nil
}
