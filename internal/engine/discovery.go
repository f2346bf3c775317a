package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// EquilibriumResult is the outcome of a price discovery run.
// EquilibriumPrice is nil when no buy and sell orders cross.
type EquilibriumResult struct {
	ShareID          string           `json:"share_id"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	EquilibriumPrice *decimal.Decimal `json:"equilibrium_price"`
	MaxVolume        int64            `json:"max_volume"`
	BuyOrdersVolume  int64            `json:"buy_orders_volume"`
	SellOrdersVolume int64            `json:"sell_orders_volume"`
	CanMatch         bool             `json:"can_match"`
}

// PriceDiscovery computes the clearing price of a share's book without
// modifying anything.
type PriceDiscovery struct {
	shares domain.ShareRepository
	orders domain.OrderRepository
}

// NewPriceDiscovery creates a PriceDiscovery reading from the given
// repositories.
func NewPriceDiscovery(shares domain.ShareRepository, orders domain.OrderRepository) *PriceDiscovery {
	return &PriceDiscovery{shares: shares, orders: orders}
}

// curvePoint is one order on a cumulative volume curve.
type curvePoint struct {
	price      decimal.Decimal
	cumulative int64
}

// Execute returns the price that maximizes matchable volume between the
// share's ACTIVE bids and asks. For every crossing pair (bid ≥ ask) the
// matchable volume is the smaller of the two cumulative volumes; the first
// pair reaching a strictly greater volume wins and its ask limit is the
// equilibrium price.
func (d *PriceDiscovery) Execute(ctx context.Context, shareID string) (*EquilibriumResult, error) {
	share, err := d.shares.FindByID(ctx, nil, shareID)
	if err != nil {
		return nil, err
	}

	orders, err := d.orders.FindActiveByShareID(ctx, nil, shareID)
	if err != nil {
		return nil, err
	}
	book, err := BuildOrderBook(shareID, orders)
	if err != nil {
		return nil, err
	}

	result := &EquilibriumResult{
		ShareID:          shareID,
		CurrentPrice:     share.CurrentPrice(),
		BuyOrdersVolume:  book.BidVolume(),
		SellOrdersVolume: book.AskVolume(),
	}
	if book.BidCount() == 0 || book.AskCount() == 0 {
		return result, nil
	}

	bids := cumulativeCurve(book.WalkBids)
	asks := cumulativeCurve(book.WalkAsks)

	var best decimal.Decimal
	for _, b := range bids {
		for _, a := range asks {
			// Asks are ascending, so no later ask crosses this bid either.
			if b.price.LessThan(a.price) {
				break
			}
			if vol := min(b.cumulative, a.cumulative); vol > result.MaxVolume {
				result.MaxVolume = vol
				best = a.price
			}
		}
	}

	if result.MaxVolume > 0 {
		result.EquilibriumPrice = &best
		result.CanMatch = true
	}
	return result, nil
}

func cumulativeCurve(walk func(func(OrderBookEntry) bool)) []curvePoint {
	var curve []curvePoint
	var total int64
	walk(func(e OrderBookEntry) bool {
		total += e.Remaining
		curve = append(curve, curvePoint{price: e.Price, cumulative: total})
		return true
	})
	return curve
}
