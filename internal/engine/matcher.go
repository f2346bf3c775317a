package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/tradingcore/internal/domain"
	"github.com/efreitasn/tradingcore/internal/events"
	"github.com/efreitasn/tradingcore/internal/lock"
)

// Matcher settles crossing ACTIVE orders of a share. Each Execute call is
// one run: it holds the share's run lock and applies every match inside a
// single transaction, so a run either settles completely or not at all.
type Matcher struct {
	repos     domain.Repositories
	fees      domain.FeeCalculator
	locker    lock.Locker
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewMatcher creates a Matcher with the given dependencies. A nil fees
// selects domain.DefaultFees, a nil locker an in-process lock and a nil
// publisher disables settlement events.
func NewMatcher(
	repos domain.Repositories,
	fees domain.FeeCalculator,
	locker lock.Locker,
	publisher events.Publisher,
	logger *slog.Logger,
) *Matcher {
	if fees == nil {
		fees = domain.DefaultFees
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		repos:     repos,
		fees:      fees,
		locker:    locker,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "matcher")),
		now:       time.Now,
	}
}

// Execute matches the share's book and returns the settled transactions in
// execution order. It returns an empty slice, and writes nothing, when no
// bid crosses an ask. On error the whole run is rolled back.
func (m *Matcher) Execute(ctx context.Context, shareID string) ([]domain.ShareTransaction, error) {
	unlock, err := m.locker.Acquire(ctx, shareID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	share, err := m.repos.Shares.FindByID(ctx, nil, shareID)
	if err != nil {
		return nil, err
	}

	tx, err := m.repos.UnitOfWork.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: begin run %s: %w", shareID, err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	book, err := m.loadBook(ctx, tx, share.ID)
	if err != nil {
		return nil, err
	}

	run := &settlementRun{
		Matcher:  m,
		tx:       tx,
		share:    share,
		accounts: make(map[string]string),
		at:       m.now(),
	}

	trades := []domain.ShareTransaction{}
	for book.Crossed() {
		bid, _ := book.BestBid()
		ask, _ := book.BestAsk()

		qty := min(bid.Remaining, ask.Remaining)
		// Execution price is the ask limit.
		price := ask.Price

		bidLeft, err := book.Fill(bid.Order.ID, qty)
		if err != nil {
			return nil, err
		}
		askLeft, err := book.Fill(ask.Order.ID, qty)
		if err != nil {
			return nil, err
		}

		trade, err := run.settle(ctx, bid.Order, ask.Order, price, qty, bidLeft, askLeft)
		if err != nil {
			m.logger.WarnContext(ctx, "matching run rolled back",
				slog.String("share_id", shareID),
				slog.String("buy_order_id", bid.Order.ID),
				slog.String("sell_order_id", ask.Order.ID),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		trades = append(trades, trade)
	}

	if len(trades) == 0 {
		return trades, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("engine: commit run %s: %w", shareID, err)
	}

	var volume int64
	for _, t := range trades {
		volume += t.Quantity
	}
	m.logger.InfoContext(ctx, "matching run settled",
		slog.String("share_id", shareID),
		slog.Int("trades", len(trades)),
		slog.Int64("volume", volume),
		slog.String("last_price", trades[len(trades)-1].PriceExecuted.String()),
	)

	m.publish(ctx, shareID, trades)
	return trades, nil
}

// MatchAll runs Execute for every distinct share concurrently. Books of
// different shares are disjoint; storage serializes any shared account or
// position. On failure it returns the first error together with the
// results of the runs that committed.
func (m *Matcher) MatchAll(ctx context.Context, shareIDs []string) (map[string][]domain.ShareTransaction, error) {
	ids := slices.Clone(shareIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var mu sync.Mutex
	results := make(map[string][]domain.ShareTransaction, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			trades, err := m.Execute(gctx, id)
			if err != nil {
				return fmt.Errorf("match %s: %w", id, err)
			}
			mu.Lock()
			results[id] = trades
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (m *Matcher) loadBook(ctx context.Context, tx domain.Tx, shareID string) (*OrderBook, error) {
	buys, err := m.repos.Orders.FindActiveByShareIDAndDirection(ctx, tx, shareID, domain.DirectionBuy)
	if err != nil {
		return nil, err
	}
	sells, err := m.repos.Orders.FindActiveByShareIDAndDirection(ctx, tx, shareID, domain.DirectionSell)
	if err != nil {
		return nil, err
	}
	return BuildOrderBook(shareID, slices.Concat(buys, sells))
}

// publish emits the settlement event. It runs strictly after commit and
// never fails the run.
func (m *Matcher) publish(ctx context.Context, shareID string, trades []domain.ShareTransaction) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishSettlement(ctx, shareID, trades); err != nil {
		m.logger.WarnContext(ctx, "settlement event not delivered",
			slog.String("share_id", shareID),
			slog.String("publisher", m.publisher.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// settlementRun carries the state of one Execute call.
type settlementRun struct {
	*Matcher
	tx       domain.Tx
	share    domain.Share
	accounts map[string]string // customer_id → trading account id
	at       time.Time
}

// settle applies one match: cash and securities move between buyer and
// seller, both orders are updated and the transaction is recorded.
// bidLeft and askLeft are the quantities still open after the match.
func (r *settlementRun) settle(
	ctx context.Context,
	buy, sell domain.Order,
	price decimal.Decimal,
	qty, bidLeft, askLeft int64,
) (domain.ShareTransaction, error) {
	buyerFee, sellerFee := r.fees.Fees(price, qty)
	trade := domain.ShareTransaction{
		ID:            uuid.New().String(),
		ShareID:       r.share.ID,
		BuyOrderID:    buy.ID,
		SellOrderID:   sell.ID,
		BuyerID:       buy.CustomerID,
		SellerID:      sell.CustomerID,
		PriceExecuted: price,
		Quantity:      qty,
		DateExecuted:  r.at,
		BuyerFee:      buyerFee,
		SellerFee:     sellerFee,
	}

	if err := r.debitBuyer(ctx, buy, trade); err != nil {
		return domain.ShareTransaction{}, err
	}
	if err := r.creditSeller(ctx, sell, trade); err != nil {
		return domain.ShareTransaction{}, err
	}
	if err := r.moveSecurities(ctx, buy.CustomerID, sell.CustomerID, qty); err != nil {
		return domain.ShareTransaction{}, err
	}
	if err := r.repos.Transactions.Save(ctx, r.tx, trade); err != nil {
		return domain.ShareTransaction{}, err
	}
	if err := r.repos.Shares.UpdateLastExecutedPrice(ctx, r.tx, r.share.ID, price); err != nil {
		return domain.ShareTransaction{}, err
	}

	// A partially filled buy keeps limit × remaining reserved; a sell
	// records its informational amount at the execution price.
	if err := r.updateOrder(ctx, buy, bidLeft, buy.PriceLimit); err != nil {
		return domain.ShareTransaction{}, err
	}
	if err := r.updateOrder(ctx, sell, askLeft, price); err != nil {
		return domain.ShareTransaction{}, err
	}
	return trade, nil
}

func (r *settlementRun) debitBuyer(ctx context.Context, buy domain.Order, trade domain.ShareTransaction) error {
	accountID, err := r.tradingAccount(ctx, buy.CustomerID)
	if err != nil {
		return err
	}
	// Release the reservation made at placement, then take the actual cost.
	if err := r.repos.Accounts.UnblockFunds(ctx, r.tx, accountID, domain.Notional(buy.PriceLimit, trade.Quantity)); err != nil {
		return err
	}
	debit := trade.BuyerDebit().Neg()
	if err := r.repos.Accounts.UpdateBalance(ctx, r.tx, accountID, debit); err != nil {
		return err
	}
	return r.repos.Accounts.UpdateBalanceAvailable(ctx, r.tx, accountID, debit)
}

func (r *settlementRun) creditSeller(ctx context.Context, sell domain.Order, trade domain.ShareTransaction) error {
	accountID, err := r.tradingAccount(ctx, sell.CustomerID)
	if err != nil {
		return err
	}
	credit := trade.SellerCredit()
	if err := r.repos.Accounts.UpdateBalance(ctx, r.tx, accountID, credit); err != nil {
		return err
	}
	return r.repos.Accounts.UpdateBalanceAvailable(ctx, r.tx, accountID, credit)
}

// moveSecurities releases qty blocked shares from the seller and credits
// them, unblocked, to the buyer.
func (r *settlementRun) moveSecurities(ctx context.Context, buyerID, sellerID string, qty int64) error {
	seller, err := r.repos.Positions.FindByCustomerIDAndShareID(ctx, r.tx, sellerID, r.share.ID)
	if err != nil {
		return err
	}
	if seller.BlockedQuantity < qty || seller.TotalQuantity < qty {
		return fmt.Errorf("%w: seller %s holds %d blocked of %d, needs %d",
			domain.ErrInsufficientSecurities, sellerID, seller.BlockedQuantity, seller.TotalQuantity, qty)
	}
	err = r.repos.Positions.UpdateQuantities(ctx, r.tx, seller.ID, seller.TotalQuantity-qty, seller.BlockedQuantity-qty)
	if err != nil {
		return err
	}

	buyer, err := r.repos.Positions.FindByCustomerIDAndShareID(ctx, r.tx, buyerID, r.share.ID)
	switch {
	case err == nil:
		return r.repos.Positions.UpdateQuantities(ctx, r.tx, buyer.ID, buyer.TotalQuantity+qty, buyer.BlockedQuantity)
	case domain.IsNotFound(err):
		return r.repos.Positions.Save(ctx, r.tx, domain.NewSecuritiesPosition(buyerID, r.share.ID, qty))
	default:
		return err
	}
}

func (r *settlementRun) updateOrder(ctx context.Context, o domain.Order, remaining int64, unitPrice decimal.Decimal) error {
	if remaining == 0 {
		if err := r.repos.Orders.UpdateRemainingQuantity(ctx, r.tx, o.ID, 0); err != nil {
			return err
		}
		if err := r.repos.Orders.UpdateBlockedAmount(ctx, r.tx, o.ID, decimal.Zero); err != nil {
			return err
		}
		return r.repos.Orders.UpdateStatus(ctx, r.tx, o.ID, domain.OrderStatusExecuted)
	}
	if err := r.repos.Orders.UpdateRemainingQuantity(ctx, r.tx, o.ID, remaining); err != nil {
		return err
	}
	return r.repos.Orders.UpdateBlockedAmount(ctx, r.tx, o.ID, domain.Notional(unitPrice, remaining))
}

func (r *settlementRun) tradingAccount(ctx context.Context, customerID string) (string, error) {
	if id, ok := r.accounts[customerID]; ok {
		return id, nil
	}
	accounts, err := r.repos.Accounts.FindByOwnerID(ctx, r.tx, customerID)
	if err != nil {
		return "", err
	}
	acc, ok := domain.TradingAccount(accounts)
	if !ok {
		return "", domain.NotFound("trading account", customerID)
	}
	r.accounts[customerID] = acc.ID
	return acc.ID, nil
}
