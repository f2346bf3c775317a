package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders,
// with a primary index by order id and a secondary index by share id
// that preserves submission order.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	byShare map[string][]string // share_id → order ids (submission order)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:  make(map[string]*domain.Order),
		byShare: make(map[string][]string),
	}
}

// Get retrieves a copy of an order by ID.
func (s *OrderStore) Get(id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFound("order", id)
	}
	return *o, nil
}

// FindActiveByShareID returns the share's ACTIVE orders in submission order.
func (s *OrderStore) FindActiveByShareID(_ context.Context, tx domain.Tx, shareID string) ([]domain.Order, error) {
	if _, err := txFrom(tx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.active(shareID, func(domain.Order) bool { return true }), nil
}

// FindActiveByShareIDAndDirection returns one side of the share's book in
// price priority, then submission order.
func (s *OrderStore) FindActiveByShareIDAndDirection(_ context.Context, tx domain.Tx, shareID string, direction domain.Direction) ([]domain.Order, error) {
	if _, err := txFrom(tx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	orders := s.active(shareID, func(o domain.Order) bool { return o.Direction == direction })
	s.mu.RUnlock()

	// Stable sort keeps submission order among equal price and time.
	slices.SortStableFunc(orders, func(a, b domain.Order) int {
		c := a.PriceLimit.Cmp(b.PriceLimit)
		if direction == domain.DirectionBuy {
			c = -c
		}
		if c != 0 {
			return c
		}
		return a.DateCaptured.Compare(b.DateCaptured)
	})
	return orders, nil
}

// active collects copies of the share's ACTIVE orders accepted by keep.
// The caller must hold s.mu.
func (s *OrderStore) active(shareID string, keep func(domain.Order) bool) []domain.Order {
	ids := s.byShare[shareID]
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o := *s.orders[id]
		if o.Active() && keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Save inserts a new order. It fails if the id is already taken.
func (s *OrderStore) Save(_ context.Context, tx domain.Tx, order domain.Order) error {
	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("store: order %s already exists", order.ID)
	}
	s.orders[order.ID] = &order
	s.byShare[order.ShareID] = append(s.byShare[order.ShareID], order.ID)

	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.orders, order.ID)
		ids := s.byShare[order.ShareID]
		if i := slices.Index(ids, order.ID); i >= 0 {
			s.byShare[order.ShareID] = slices.Delete(ids, i, i+1)
		}
	})
	return nil
}

// UpdateStatus sets the order status.
func (s *OrderStore) UpdateStatus(_ context.Context, tx domain.Tx, id string, status domain.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("store: invalid order status %q", status)
	}
	return s.mutate(tx, id, func(o *domain.Order) { o.Status = status })
}

// UpdateBlockedAmount sets the amount reserved against the order.
func (s *OrderStore) UpdateBlockedAmount(_ context.Context, tx domain.Tx, id string, amount decimal.Decimal) error {
	return s.mutate(tx, id, func(o *domain.Order) { o.BlockedAmount = amount })
}

// UpdateRemainingQuantity sets the quantity still open after fills.
func (s *OrderStore) UpdateRemainingQuantity(_ context.Context, tx domain.Tx, id string, remaining int64) error {
	return s.mutate(tx, id, func(o *domain.Order) { o.RemainingQuantity = remaining })
}

func (s *OrderStore) mutate(tx domain.Tx, id string, fn func(*domain.Order)) error {
	mt, err := txFrom(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.NotFound("order", id)
	}
	prev := *o
	fn(o)
	mt.onRollback(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		*o = prev
	})
	return nil
}
