package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/tradingcore/internal/domain"
)

var (
	propBuyers  = []string{"b0", "b1", "b2"}
	propSellers = []string{"s0", "s1", "s2"}
)

// seedRandomBook places random crossing and non-crossing orders for ACME.
// Buyers only buy and sellers only sell, so cash flows are attributable.
func seedRandomBook(t *rapid.T) (*fixture, []domain.Order) {
	f := newFixture(t)
	f.share("ACME", 100)
	for _, id := range propBuyers {
		f.customer(id, 1_000_000)
	}
	for _, id := range propSellers {
		f.customer(id, 0)
		f.holding(id, "ACME", 1_000)
	}

	n := rapid.IntRange(1, 30).Draw(t, "numOrders")
	orders := make([]domain.Order, 0, n)
	for i := 0; i < n; i++ {
		limit := rapid.Int64Range(90, 110).Draw(t, fmt.Sprintf("limit-%d", i))
		qty := rapid.Int64Range(1, 20).Draw(t, fmt.Sprintf("qty-%d", i))
		if rapid.Bool().Draw(t, fmt.Sprintf("isBuy-%d", i)) {
			who := rapid.SampledFrom(propBuyers).Draw(t, fmt.Sprintf("buyer-%d", i))
			orders = append(orders, f.buy(who, "ACME", limit, qty))
		} else {
			who := rapid.SampledFrom(propSellers).Draw(t, fmt.Sprintf("seller-%d", i))
			orders = append(orders, f.sell(who, "ACME", limit, qty))
		}
	}
	return f, orders
}

func balances(f *fixture, ids []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		out[id] = f.account(id).Balance
	}
	return out
}

// Total debits from buyer accounts equal total credits to seller accounts
// plus total fees collected.
func TestProperty_SettlementCashConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, _ := seedRandomBook(t)
		buyersBefore := balances(f, propBuyers)
		sellersBefore := balances(f, propSellers)

		trades, err := f.matcher(nil).Execute(context.Background(), "ACME")
		if err != nil {
			t.Fatalf("execute: %v", err)
		}

		debits := decimal.Zero
		for _, id := range propBuyers {
			debits = debits.Add(buyersBefore[id].Sub(f.account(id).Balance))
		}
		credits := decimal.Zero
		for _, id := range propSellers {
			credits = credits.Add(f.account(id).Balance.Sub(sellersBefore[id]))
		}
		fees := decimal.Zero
		for _, tr := range trades {
			fees = fees.Add(tr.BuyerFee).Add(tr.SellerFee)
		}

		if !debits.Equal(credits.Add(fees)) {
			t.Fatalf("debits %s != credits %s + fees %s", debits, credits, fees)
		}
	})
}

// No order is filled beyond its quantity, EXECUTED means fully filled, and
// the book is left uncrossed.
func TestProperty_RemainingQuantitySafety(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, orders := seedRandomBook(t)
		m := f.matcher(nil)

		trades, err := m.Execute(context.Background(), "ACME")
		if err != nil {
			t.Fatalf("execute: %v", err)
		}

		filled := make(map[string]int64)
		for _, tr := range trades {
			if tr.Quantity <= 0 {
				t.Fatalf("trade with non-positive quantity: %+v", tr)
			}
			filled[tr.BuyOrderID] += tr.Quantity
			filled[tr.SellOrderID] += tr.Quantity
		}

		for _, o := range orders {
			got := f.order(o.ID)
			if filled[o.ID] > o.Quantity {
				t.Fatalf("order %s over-executed: %d of %d", o.ID, filled[o.ID], o.Quantity)
			}
			if got.RemainingQuantity != o.Quantity-filled[o.ID] {
				t.Fatalf("order %s remaining %d, want %d", o.ID, got.RemainingQuantity, o.Quantity-filled[o.ID])
			}
			if (got.Status == domain.OrderStatusExecuted) != (got.RemainingQuantity == 0) {
				t.Fatalf("order %s status %s with remaining %d", o.ID, got.Status, got.RemainingQuantity)
			}
		}

		again, err := m.Execute(context.Background(), "ACME")
		if err != nil || len(again) != 0 {
			t.Fatalf("book still crossed after a run: %d trades, err=%v", len(again), err)
		}
	})
}

// Reservations stay consistent: each buyer's blocked cash equals the blocked
// amount of its ACTIVE buys, each seller's blocked quantity equals the
// remaining quantity of its ACTIVE sells, and no shares are created.
func TestProperty_ReservationConsistency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, orders := seedRandomBook(t)

		if _, err := f.matcher(nil).Execute(context.Background(), "ACME"); err != nil {
			t.Fatalf("execute: %v", err)
		}

		blockedCash := make(map[string]decimal.Decimal)
		blockedQty := make(map[string]int64)
		for _, o := range orders {
			got := f.order(o.ID)
			if !got.Active() {
				continue
			}
			if got.Direction == domain.DirectionBuy {
				if !got.BlockedAmount.Equal(domain.Notional(got.PriceLimit, got.RemainingQuantity)) {
					t.Fatalf("buy %s blocked %s, want limit × remaining", got.ID, got.BlockedAmount)
				}
				blockedCash[got.CustomerID] = blockedCash[got.CustomerID].Add(got.BlockedAmount)
			} else {
				blockedQty[got.CustomerID] += got.RemainingQuantity
			}
		}

		for _, id := range propBuyers {
			if a := f.account(id); !a.Blocked().Equal(blockedCash[id]) {
				t.Fatalf("buyer %s blocked %s, active buys hold %s", id, a.Blocked(), blockedCash[id])
			}
		}

		var totalShares int64
		for _, id := range propSellers {
			p, _ := f.position(id, "ACME")
			if p.BlockedQuantity != blockedQty[id] {
				t.Fatalf("seller %s blocked %d, active sells hold %d", id, p.BlockedQuantity, blockedQty[id])
			}
			totalShares += p.TotalQuantity
		}
		for _, id := range propBuyers {
			if p, ok := f.position(id, "ACME"); ok {
				totalShares += p.TotalQuantity
			}
		}
		if want := int64(1_000 * len(propSellers)); totalShares != want {
			t.Fatalf("total shares %d, want %d", totalShares, want)
		}
	})
}

// Price discovery reports CanMatch exactly when a matching run trades.
func TestProperty_DiscoveryAgreesWithMatching(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, _ := seedRandomBook(t)

		res, err := NewPriceDiscovery(f.mem.Shares, f.mem.Orders).Execute(context.Background(), "ACME")
		if err != nil {
			t.Fatalf("discovery: %v", err)
		}
		trades, err := f.matcher(nil).Execute(context.Background(), "ACME")
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if res.CanMatch != (len(trades) > 0) {
			t.Fatalf("CanMatch=%v but run produced %d trades", res.CanMatch, len(trades))
		}
		if res.CanMatch && res.EquilibriumPrice == nil {
			t.Fatal("CanMatch without an equilibrium price")
		}
	})
}
