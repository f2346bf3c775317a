package engine

import (
	"fmt"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// OrderBookEntry represents a single ACTIVE order queued on the book.
// Remaining is the matching counter for the run; it starts at the order's
// RemainingQuantity and the entry leaves the book when it reaches zero.
type OrderBookEntry struct {
	Price        decimal.Decimal
	DateCaptured time.Time
	Seq          int
	Order        domain.Order
	Remaining    int64
}

// bidLess defines ordering for the bid side: price descending, then
// date captured ascending, then load sequence ascending. Min() returns
// the best bid.
func bidLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return timeSeqLess(a, b)
}

// askLess defines ordering for the ask side: price ascending, then
// date captured ascending, then load sequence ascending. Min() returns
// the best ask.
func askLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return timeSeqLess(a, b)
}

func timeSeqLess(a, b OrderBookEntry) bool {
	if !a.DateCaptured.Equal(b.DateCaptured) {
		return a.DateCaptured.Before(b.DateCaptured)
	}
	return a.Seq < b.Seq
}

// OrderBook holds the bid and ask queues of a single share for the duration
// of one discovery or matching run. It is not safe for concurrent use: the
// per-share run lock serializes access.
type OrderBook struct {
	shareID string
	bids    *btree.BTreeG[OrderBookEntry]
	asks    *btree.BTreeG[OrderBookEntry]
	index   map[string]OrderBookEntry // order_id → entry
}

// NewOrderBook creates an empty order book for the given share.
func NewOrderBook(shareID string) *OrderBook {
	const degree = 32
	return &OrderBook{
		shareID: shareID,
		bids:    btree.NewG[OrderBookEntry](degree, bidLess),
		asks:    btree.NewG[OrderBookEntry](degree, askLess),
		index:   make(map[string]OrderBookEntry),
	}
}

// BuildOrderBook loads orders onto a new book. The position of an order in
// the slice is its submission sequence, used as the last tie-break.
// Orders that are not ACTIVE or have nothing left to fill are skipped.
func BuildOrderBook(shareID string, orders []domain.Order) (*OrderBook, error) {
	book := NewOrderBook(shareID)
	for i, o := range orders {
		if !o.Active() || o.RemainingQuantity <= 0 {
			continue
		}
		if err := book.Insert(o, i); err != nil {
			return nil, err
		}
	}
	return book, nil
}

// Insert queues an order on the side given by its direction.
func (ob *OrderBook) Insert(order domain.Order, seq int) error {
	if order.ShareID != ob.shareID {
		return fmt.Errorf("engine: order %s belongs to share %s, not %s", order.ID, order.ShareID, ob.shareID)
	}
	entry := OrderBookEntry{
		Price:        order.PriceLimit,
		DateCaptured: order.DateCaptured,
		Seq:          seq,
		Order:        order,
		Remaining:    order.RemainingQuantity,
	}
	switch order.Direction {
	case domain.DirectionBuy:
		ob.bids.ReplaceOrInsert(entry)
	case domain.DirectionSell:
		ob.asks.ReplaceOrInsert(entry)
	default:
		return fmt.Errorf("engine: order %s: unknown direction %q", order.ID, order.Direction)
	}
	ob.index[order.ID] = entry
	return nil
}

// Remove deletes an order from the book by order ID using the
// secondary index.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	ob.tree(entry.Order.Direction).Delete(entry)
}

// Fill consumes qty from the order's remaining counter and returns what is
// left. The order leaves the book once nothing remains. Filling more than
// the remaining quantity is an error and changes nothing.
func (ob *OrderBook) Fill(orderID string, qty int64) (int64, error) {
	entry, ok := ob.index[orderID]
	if !ok {
		return 0, fmt.Errorf("engine: order %s is not on the book", orderID)
	}
	if qty <= 0 || qty > entry.Remaining {
		return 0, fmt.Errorf("engine: order %s: cannot fill %d of %d remaining", orderID, qty, entry.Remaining)
	}

	entry.Remaining -= qty
	if entry.Remaining == 0 {
		ob.Remove(orderID)
		return 0, nil
	}
	// Ordering keys are unchanged, so this replaces the entry in place.
	ob.tree(entry.Order.Direction).ReplaceOrInsert(entry)
	ob.index[orderID] = entry
	return entry.Remaining, nil
}

func (ob *OrderBook) tree(d domain.Direction) *btree.BTreeG[OrderBookEntry] {
	if d == domain.DirectionBuy {
		return ob.bids
	}
	return ob.asks
}

// BestBid returns the highest-priority bid (highest price, earliest time).
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest time).
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// Crossed reports whether the best bid meets or exceeds the best ask.
func (ob *OrderBook) Crossed() bool {
	bid, okB := ob.BestBid()
	ask, okA := ob.BestAsk()
	return okB && okA && bid.Price.GreaterThanOrEqual(ask.Price)
}

// WalkAsks iterates asks in order (lowest price first). The callback
// returns true to continue, false to stop.
func (ob *OrderBook) WalkAsks(fn func(OrderBookEntry) bool) {
	ob.asks.Ascend(fn)
}

// WalkBids iterates bids in order (highest price first). The callback
// returns true to continue, false to stop.
func (ob *OrderBook) WalkBids(fn func(OrderBookEntry) bool) {
	ob.bids.Ascend(fn)
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// BidVolume returns the total remaining quantity on the bid side.
func (ob *OrderBook) BidVolume() int64 {
	return sideVolume(ob.bids)
}

// AskVolume returns the total remaining quantity on the ask side.
func (ob *OrderBook) AskVolume() int64 {
	return sideVolume(ob.asks)
}

func sideVolume(tree *btree.BTreeG[OrderBookEntry]) int64 {
	var total int64
	tree.Ascend(func(e OrderBookEntry) bool {
		total += e.Remaining
		return true
	})
	return total
}
