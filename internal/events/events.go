// Package events publishes settlement notifications after a matching run
// has committed. Delivery is best effort: a failed publish never undoes a
// settlement.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// Publisher delivers a committed settlement to one channel.
type Publisher interface {
	PublishSettlement(ctx context.Context, shareID string, trades []domain.ShareTransaction) error
	// Name identifies the channel in logs (e.g. "kafka").
	Name() string
}

// Trade is the wire form of a settled ShareTransaction.
type Trade struct {
	ID            string          `json:"id"`
	BuyOrderID    string          `json:"buy_order_id"`
	SellOrderID   string          `json:"sell_order_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	PriceExecuted decimal.Decimal `json:"price_executed"`
	Quantity      int64           `json:"quantity"`
	BuyerFee      decimal.Decimal `json:"buyer_fee"`
	SellerFee     decimal.Decimal `json:"seller_fee"`
	DateExecuted  time.Time       `json:"date_executed"`
}

// Settlement is the event emitted once per committed matching run.
type Settlement struct {
	ShareID   string  `json:"share_id"`
	Volume    int64   `json:"volume"`
	LastPrice *string `json:"last_price"`
	Trades    []Trade `json:"trades"`
}

// NewSettlement builds the event for the trades of one run.
func NewSettlement(shareID string, trades []domain.ShareTransaction) Settlement {
	s := Settlement{
		ShareID: shareID,
		Trades:  make([]Trade, 0, len(trades)),
	}
	for _, t := range trades {
		s.Volume += t.Quantity
		s.Trades = append(s.Trades, Trade{
			ID:            t.ID,
			BuyOrderID:    t.BuyOrderID,
			SellOrderID:   t.SellOrderID,
			BuyerID:       t.BuyerID,
			SellerID:      t.SellerID,
			PriceExecuted: t.PriceExecuted,
			Quantity:      t.Quantity,
			BuyerFee:      t.BuyerFee,
			SellerFee:     t.SellerFee,
			DateExecuted:  t.DateExecuted,
		})
	}
	if n := len(trades); n > 0 {
		p := trades[n-1].PriceExecuted.String()
		s.LastPrice = &p
	}
	return s
}

func encode(shareID string, trades []domain.ShareTransaction) ([]byte, error) {
	payload, err := json.Marshal(NewSettlement(shareID, trades))
	if err != nil {
		return nil, fmt.Errorf("events: encode settlement %s: %w", shareID, err)
	}
	return payload, nil
}

// Multi fans a settlement out to every publisher. One failing publisher
// does not prevent delivery to the others; failures are returned combined
// and logging them is left to the caller.
type Multi struct {
	publishers []Publisher
	logger     *slog.Logger
}

// NewMulti creates a fan-out publisher.
func NewMulti(logger *slog.Logger, publishers ...Publisher) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{
		publishers: publishers,
		logger:     logger.With(slog.String("component", "events")),
	}
}

// Name implements Publisher.
func (m *Multi) Name() string { return "multi" }

// PublishSettlement implements Publisher.
func (m *Multi) PublishSettlement(ctx context.Context, shareID string, trades []domain.ShareTransaction) error {
	var errs []string
	for _, p := range m.publishers {
		if err := p.PublishSettlement(ctx, shareID, trades); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		m.logger.DebugContext(ctx, "settlement published",
			slog.String("publisher", p.Name()),
			slog.String("share_id", shareID),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("events: %d publisher(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Log writes settlements to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log publisher.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With(slog.String("component", "settlement"))}
}

// Name implements Publisher.
func (l *Log) Name() string { return "log" }

// PublishSettlement implements Publisher.
func (l *Log) PublishSettlement(ctx context.Context, shareID string, trades []domain.ShareTransaction) error {
	for _, t := range trades {
		l.logger.InfoContext(ctx, "trade settled",
			slog.String("share_id", shareID),
			slog.String("transaction_id", t.ID),
			slog.String("buy_order_id", t.BuyOrderID),
			slog.String("sell_order_id", t.SellOrderID),
			slog.String("price", t.PriceExecuted.String()),
			slog.Int64("quantity", t.Quantity),
		)
	}
	return nil
}

var (
	_ Publisher = (*Multi)(nil)
	_ Publisher = (*Log)(nil)
)
