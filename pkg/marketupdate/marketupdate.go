// Package marketupdate defines the three shapes of market event the
// exchange can be driven with — Bba, Trade, and SmartCandle — behind one
// shared interface, mirroring original_source's MarketUpdate trait
// (market_update/*.rs).
package marketupdate

import (
	"fmt"
	"sort"

	"futures-sim/internal/marketstate"
	"futures-sim/internal/orderstate"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/types"
)

// Update is the capability every market event must provide.
type Update[Q currency.Unit] interface {
	// Validate checks the event against the current price filter.
	Validate(ms *marketstate.State) error
	// ApplyToMarketState updates bid/ask/timestamp, if this event kind
	// carries a top-of-book refresh (Bba does; Trade/SmartCandle don't).
	ApplyToMarketState(ms *marketstate.State)
	// LimitOrderFilled reports how much of a resting order this event
	// fills, if any. consumed is how much of this event's tradeable
	// quantity earlier fills within the same UpdateState call already
	// used up — callers must accumulate it across successive calls on the
	// same event so one event's volume isn't reused to fill past its own
	// size.
	LimitOrderFilled(order orderstate.PendingLimitOrder[Q], consumed currency.Money[Q]) (currency.Money[Q], bool)
	TimestampExchangeNs() timeutil.TimestampNs
}

// Bba is a top-of-book refresh. It never fills resting orders — no trade
// took place in the book, only a quote changed.
type Bba[Q currency.Unit] struct {
	Bid, Ask    currency.Money[currency.Quote]
	TimestampNs timeutil.TimestampNs
}

func (b Bba[Q]) Validate(ms *marketstate.State) error { return ms.ValidateBidAsk(b.Bid, b.Ask) }

func (b Bba[Q]) ApplyToMarketState(ms *marketstate.State) { ms.SetBidAsk(b.Bid, b.Ask, b.TimestampNs) }

func (b Bba[Q]) LimitOrderFilled(order orderstate.PendingLimitOrder[Q], consumed currency.Money[Q]) (currency.Money[Q], bool) {
	return currency.Zero[Q](), false
}

func (b Bba[Q]) TimestampExchangeNs() timeutil.TimestampNs { return b.TimestampNs }

// Trade is a taker print that consumes liquidity in the book. A resting
// order fills only if the trade is on its own opposite side and strictly
// better-priced than the order's limit — the order is assumed to have the
// worst possible queue position.
type Trade[Q currency.Unit] struct {
	Price       currency.Money[currency.Quote]
	Quantity    currency.Money[Q]
	Side        types.Side
	TimestampNs timeutil.TimestampNs
}

func (t Trade[Q]) Validate(ms *marketstate.State) error { return ms.ValidatePrice(t.Price) }

func (t Trade[Q]) ApplyToMarketState(ms *marketstate.State) {}

func (t Trade[Q]) LimitOrderFilled(order orderstate.PendingLimitOrder[Q], consumed currency.Money[Q]) (currency.Money[Q], bool) {
	crosses := false
	switch order.Side() {
	case types.Buy:
		crosses = t.Side == types.Sell && t.Price.LessThan(order.LimitPrice())
	case types.Sell:
		crosses = t.Side == types.Buy && t.Price.GreaterThan(order.LimitPrice())
	}
	if !crosses {
		return currency.Zero[Q](), false
	}
	available := t.Quantity.Sub(consumed)
	if available.IsNegative() || available.IsZero() {
		return currency.Zero[Q](), false
	}
	return currency.Min(available, order.RemainingQuantity()), true
}

func (t Trade[Q]) TimestampExchangeNs() timeutil.TimestampNs { return t.TimestampNs }

// priceLevel is one aggregated price/volume bucket in a SmartCandle.
type priceLevel[Q currency.Unit] struct {
	Price  currency.Money[currency.Quote]
	Volume currency.Money[Q]
}

// SmartCandle aggregates a bucket of taker trades into per-price buy/sell
// volume, sorted by price, so a replay can approximate realistic fill flow
// without replaying every individual taker print.
type SmartCandle[Q currency.Unit] struct {
	buyLevels   []priceLevel[Q] // descending price: best (highest) first
	sellLevels  []priceLevel[Q] // ascending price: best (lowest) first
	timestampNs timeutil.TimestampNs
}

// TradeInput is one taker print folded into a SmartCandle.
type TradeInput[Q currency.Unit] struct {
	Price    currency.Money[currency.Quote]
	Quantity currency.Money[Q]
	Side     types.Side
}

// NewSmartCandle aggregates takerTrades into per-price-level buy/sell
// volume. Panics if takerTrades is empty — a SmartCandle always
// summarizes at least one trade, same as the source this is ported from.
func NewSmartCandle[Q currency.Unit](takerTrades []TradeInput[Q], timestampNs timeutil.TimestampNs) SmartCandle[Q] {
	if len(takerTrades) == 0 {
		panic("marketupdate: NewSmartCandle requires at least one trade")
	}
	var buys, sells []TradeInput[Q]
	for _, t := range takerTrades {
		if t.Side == types.Buy {
			buys = append(buys, t)
		} else {
			sells = append(sells, t)
		}
	}
	sort.Slice(buys, func(i, j int) bool { return buys[i].Price.GreaterThan(buys[j].Price) })
	sort.Slice(sells, func(i, j int) bool { return sells[i].Price.LessThan(sells[j].Price) })

	return SmartCandle[Q]{
		buyLevels:   aggregate(buys),
		sellLevels:  aggregate(sells),
		timestampNs: timestampNs,
	}
}

func aggregate[Q currency.Unit](trades []TradeInput[Q]) []priceLevel[Q] {
	levels := make([]priceLevel[Q], 0, len(trades))
	for _, t := range trades {
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(t.Price) {
			levels[n-1].Volume = levels[n-1].Volume.Add(t.Quantity)
			continue
		}
		levels = append(levels, priceLevel[Q]{Price: t.Price, Volume: t.Quantity})
	}
	return levels
}

func (c SmartCandle[Q]) Validate(ms *marketstate.State) error {
	for _, lvl := range c.buyLevels {
		if err := ms.ValidatePrice(lvl.Price); err != nil {
			return err
		}
	}
	for _, lvl := range c.sellLevels {
		if err := ms.ValidatePrice(lvl.Price); err != nil {
			return err
		}
	}
	return nil
}

func (c SmartCandle[Q]) ApplyToMarketState(ms *marketstate.State) {}

// LimitOrderFilled sums the cumulative aggregated volume available at
// prices that cross the resting order's limit, minus whatever of that
// pool earlier calls within the same UpdateState already consumed, and
// caps the result at the order's remaining quantity.
func (c SmartCandle[Q]) LimitOrderFilled(order orderstate.PendingLimitOrder[Q], consumed currency.Money[Q]) (currency.Money[Q], bool) {
	var levels []priceLevel[Q]
	var crosses func(levelPrice currency.Money[currency.Quote]) bool
	switch order.Side() {
	case types.Buy:
		levels = c.sellLevels
		crosses = func(p currency.Money[currency.Quote]) bool { return p.LessThan(order.LimitPrice()) }
	case types.Sell:
		levels = c.buyLevels
		crosses = func(p currency.Money[currency.Quote]) bool { return p.GreaterThan(order.LimitPrice()) }
	}
	total := currency.Zero[Q]()
	for _, lvl := range levels {
		if !crosses(lvl.Price) {
			continue
		}
		total = total.Add(lvl.Volume)
	}
	available := total.Sub(consumed)
	if available.IsNegative() || available.IsZero() {
		return currency.Zero[Q](), false
	}
	return currency.Min(available, order.RemainingQuantity()), true
}

func (c SmartCandle[Q]) TimestampExchangeNs() timeutil.TimestampNs { return c.timestampNs }

func (c SmartCandle[Q]) String() string {
	return fmt.Sprintf("SmartCandle{buyLevels=%d sellLevels=%d}", len(c.buyLevels), len(c.sellLevels))
}
