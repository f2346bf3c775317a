package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
	"github.com/efreitasn/tradingcore/internal/events"
	"github.com/efreitasn/tradingcore/internal/store"
)

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

// fixture wires a Matcher over fresh in-memory stores. Orders are seeded
// with the same reservations placement would make.
type fixture struct {
	t     tb
	mem   *store.Memory
	clock time.Time
}

var baseTime = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t tb) *fixture {
	return &fixture{t: t, mem: store.NewMemory(), clock: baseTime}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fixture) matcher(pub *recordingPublisher) *Matcher {
	var p events.Publisher
	if pub != nil {
		p = pub
	}
	m := NewMatcher(f.mem.Repositories(), domain.DefaultFees, nil, p, discardLogger())
	m.now = func() time.Time { return baseTime.Add(time.Hour) }
	return m
}

func (f *fixture) share(id string, initialPrice int64) {
	f.t.Helper()
	err := f.mem.Shares.Create(domain.Share{
		ID:                 id,
		Name:               id + " Corp",
		TotalNumberOfParts: 1_000_000,
		InitialPrice:       decimal.NewFromInt(initialPrice),
	})
	if err != nil {
		f.t.Fatalf("create share: %v", err)
	}
}

func accountID(customerID string) string { return "acc-" + customerID }

func (f *fixture) customer(id string, cash int64) {
	f.t.Helper()
	err := f.mem.Accounts.Create(domain.Account{
		ID:               accountID(id),
		OwnerID:          id,
		Type:             domain.AccountTypeTrading,
		Balance:          decimal.NewFromInt(cash),
		AvailableBalance: decimal.NewFromInt(cash),
	})
	if err != nil {
		f.t.Fatalf("create account: %v", err)
	}
}

func (f *fixture) holding(customerID, shareID string, qty int64) {
	f.t.Helper()
	if err := f.mem.Positions.Save(context.Background(), nil, domain.NewSecuritiesPosition(customerID, shareID, qty)); err != nil {
		f.t.Fatalf("save position: %v", err)
	}
}

func (f *fixture) newOrder(customerID, shareID string, dir domain.Direction, limit, qty int64) domain.Order {
	f.clock = f.clock.Add(time.Second)
	return domain.Order{
		ID:                uuid.New().String(),
		CustomerID:        customerID,
		ShareID:           shareID,
		Direction:         dir,
		Quantity:          qty,
		RemainingQuantity: qty,
		PriceLimit:        decimal.NewFromInt(limit),
		Validity:          domain.ValidityUntilCancelled,
		Status:            domain.OrderStatusActive,
		DateCaptured:      f.clock,
	}
}

// buy blocks limit × qty on the customer's account and saves the order.
func (f *fixture) buy(customerID, shareID string, limit, qty int64) domain.Order {
	f.t.Helper()
	ctx := context.Background()
	o := f.newOrder(customerID, shareID, domain.DirectionBuy, limit, qty)
	o.BlockedAmount = domain.Notional(o.PriceLimit, qty)
	if err := f.mem.Accounts.BlockFunds(ctx, nil, accountID(customerID), o.BlockedAmount); err != nil {
		f.t.Fatalf("block funds: %v", err)
	}
	if err := f.mem.Orders.Save(ctx, nil, o); err != nil {
		f.t.Fatalf("save order: %v", err)
	}
	return o
}

// sell blocks qty on the customer's position and saves the order.
func (f *fixture) sell(customerID, shareID string, limit, qty int64) domain.Order {
	f.t.Helper()
	ctx := context.Background()
	o := f.newOrder(customerID, shareID, domain.DirectionSell, limit, qty)
	o.BlockedAmount = domain.Notional(o.PriceLimit, qty)
	p, err := f.mem.Positions.FindByCustomerIDAndShareID(ctx, nil, customerID, shareID)
	if err != nil {
		f.t.Fatalf("find position: %v", err)
	}
	if err := f.mem.Positions.UpdateQuantities(ctx, nil, p.ID, p.TotalQuantity, p.BlockedQuantity+qty); err != nil {
		f.t.Fatalf("block position: %v", err)
	}
	if err := f.mem.Orders.Save(ctx, nil, o); err != nil {
		f.t.Fatalf("save order: %v", err)
	}
	return o
}

// sellUnbacked saves a sell order without any position behind it.
func (f *fixture) sellUnbacked(customerID, shareID string, limit, qty int64) domain.Order {
	f.t.Helper()
	o := f.newOrder(customerID, shareID, domain.DirectionSell, limit, qty)
	if err := f.mem.Orders.Save(context.Background(), nil, o); err != nil {
		f.t.Fatalf("save order: %v", err)
	}
	return o
}

func (f *fixture) account(customerID string) domain.Account {
	f.t.Helper()
	a, err := f.mem.Accounts.Get(accountID(customerID))
	if err != nil {
		f.t.Fatalf("get account: %v", err)
	}
	return a
}

func (f *fixture) position(customerID, shareID string) (domain.SecuritiesPosition, bool) {
	p, err := f.mem.Positions.FindByCustomerIDAndShareID(context.Background(), nil, customerID, shareID)
	if err != nil {
		return domain.SecuritiesPosition{}, false
	}
	return p, true
}

func (f *fixture) order(id string) domain.Order {
	f.t.Helper()
	o, err := f.mem.Orders.Get(id)
	if err != nil {
		f.t.Fatalf("get order: %v", err)
	}
	return o
}

func (f *fixture) lastPrice(shareID string) decimal.Decimal {
	f.t.Helper()
	s, err := f.mem.Shares.FindByID(context.Background(), nil, shareID)
	if err != nil {
		f.t.Fatalf("find share: %v", err)
	}
	return s.LastExecutedPrice
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// recordingPublisher captures settlement events.
type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	shares []string
	trades [][]domain.ShareTransaction
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) PublishSettlement(_ context.Context, shareID string, trades []domain.ShareTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shares = append(p.shares, shareID)
	p.trades = append(p.trades, trades)
	return p.err
}
