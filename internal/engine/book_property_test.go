package engine

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// genOrder generates an ACTIVE order with constrained values. A small range
// of seconds encourages timestamp collisions to exercise tiebreaking.
func genOrder(id int, dir domain.Direction) *rapid.Generator[domain.Order] {
	return rapid.Custom(func(t *rapid.T) domain.Order {
		price := rapid.Int64Range(1, 200).Draw(t, "price")
		secOffset := rapid.IntRange(0, 20).Draw(t, "secOffset")
		qty := rapid.Int64Range(1, 50).Draw(t, "qty")
		return makeOrder(fmt.Sprintf("order-%d", id), dir, price, qty,
			time.Date(2025, 1, 1, 0, 0, secOffset, 0, time.UTC))
	})
}

func TestProperty_BidSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numOrders")
		orders := make([]domain.Order, n)
		for i := range orders {
			orders[i] = genOrder(i, domain.DirectionBuy).Draw(t, fmt.Sprintf("bid-%d", i))
		}
		book, err := BuildOrderBook("ACME", orders)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if book.BidCount() != n {
			t.Fatalf("expected %d bids, got %d", n, book.BidCount())
		}

		// Price descending, then date captured ascending, then submission order.
		var prev *OrderBookEntry
		book.WalkBids(func(entry OrderBookEntry) bool {
			if prev != nil {
				if entry.Price.GreaterThan(prev.Price) {
					t.Fatalf("bid side: price should be descending, got %s after %s", entry.Price, prev.Price)
				}
				if entry.Price.Equal(prev.Price) {
					if entry.DateCaptured.Before(prev.DateCaptured) {
						t.Fatalf("bid side: same price %s, time should be ascending", entry.Price)
					}
					if entry.DateCaptured.Equal(prev.DateCaptured) && entry.Seq < prev.Seq {
						t.Fatalf("bid side: same price and time, seq should be ascending, got %d after %d", entry.Seq, prev.Seq)
					}
				}
			}
			cur := entry
			prev = &cur
			return true
		})
	})
}

func TestProperty_AskSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numOrders")
		orders := make([]domain.Order, n)
		for i := range orders {
			orders[i] = genOrder(i, domain.DirectionSell).Draw(t, fmt.Sprintf("ask-%d", i))
		}
		book, err := BuildOrderBook("ACME", orders)
		if err != nil {
			t.Fatalf("build: %v", err)
		}

		// Price ascending, then date captured ascending, then submission order.
		var prev *OrderBookEntry
		book.WalkAsks(func(entry OrderBookEntry) bool {
			if prev != nil {
				if entry.Price.LessThan(prev.Price) {
					t.Fatalf("ask side: price should be ascending, got %s after %s", entry.Price, prev.Price)
				}
				if entry.Price.Equal(prev.Price) {
					if entry.DateCaptured.Before(prev.DateCaptured) {
						t.Fatalf("ask side: same price %s, time should be ascending", entry.Price)
					}
					if entry.DateCaptured.Equal(prev.DateCaptured) && entry.Seq < prev.Seq {
						t.Fatalf("ask side: same price and time, seq should be ascending, got %d after %d", entry.Seq, prev.Seq)
					}
				}
			}
			cur := entry
			prev = &cur
			return true
		})
	})
}

func TestProperty_FillConservesVolume(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "numOrders")
		orders := make([]domain.Order, n)
		for i := range orders {
			orders[i] = genOrder(i, domain.DirectionSell).Draw(t, fmt.Sprintf("ask-%d", i))
		}
		book, _ := BuildOrderBook("ACME", orders)
		total := book.AskVolume()

		var filled int64
		for book.AskCount() > 0 {
			ask, _ := book.BestAsk()
			qty := rapid.Int64Range(1, ask.Remaining).Draw(t, "fill")
			if _, err := book.Fill(ask.Order.ID, qty); err != nil {
				t.Fatalf("fill: %v", err)
			}
			filled += qty
			if book.AskVolume() != total-filled {
				t.Fatalf("volume %d, want %d", book.AskVolume(), total-filled)
			}
		}
		if filled != total {
			t.Fatalf("filled %d, want %d", filled, total)
		}
	})
}
