// Package book implements the active-order book: two price-time-sorted
// sequences of resting limit orders, with incremental notional tracking
// so the margin engine never has to re-sum the book on every check.
package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures-sim/internal/futuresmath"
	"futures-sim/internal/margin"
	"futures-sim/internal/orderstate"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/types"
	"futures-sim/pkg/xerrors"
)

// ActiveOrders holds the resting buy and sell limit orders for one
// instrument. Both sequences are kept sorted such that the last element
// is always the best-executable order on its side (spec.md §4.1): bids
// ascending by price (highest last), asks descending by price (lowest
// last); ties broken by the oldest exchange timestamp sorting last.
type ActiveOrders[Q currency.Unit, M currency.Unit] struct {
	math       futuresmath.Math[Q, M]
	maxPerSide int

	bids []orderstate.PendingLimitOrder[Q]
	asks []orderstate.PendingLimitOrder[Q]

	bidsNotional currency.Money[M]
	asksNotional currency.Money[M]
}

// New creates an empty book bounded at maxPerSide resting orders on each
// side.
func New[Q currency.Unit, M currency.Unit](math futuresmath.Math[Q, M], maxPerSide int) *ActiveOrders[Q, M] {
	return &ActiveOrders[Q, M]{math: math, maxPerSide: maxPerSide}
}

func (b *ActiveOrders[Q, M]) sideSlice(side types.Side) []orderstate.PendingLimitOrder[Q] {
	if side == types.Buy {
		return b.bids
	}
	return b.asks
}

func (b *ActiveOrders[Q, M]) setSideSlice(side types.Side, s []orderstate.PendingLimitOrder[Q]) {
	if side == types.Buy {
		b.bids = s
	} else {
		b.asks = s
	}
}

func (b *ActiveOrders[Q, M]) sideNotional(side types.Side) currency.Money[M] {
	if side == types.Buy {
		return b.bidsNotional
	}
	return b.asksNotional
}

func (b *ActiveOrders[Q, M]) addSideNotional(side types.Side, delta currency.Money[M]) {
	if side == types.Buy {
		b.bidsNotional = b.bidsNotional.Add(delta)
	} else {
		b.asksNotional = b.asksNotional.Add(delta)
	}
}

// bidLess reports whether a sorts before b in the bids sequence: ascending
// price, with the older timestamp (at equal price) placed later.
func bidLess[Q currency.Unit](a, b orderstate.PendingLimitOrder[Q]) bool {
	if !a.LimitPrice().Equal(b.LimitPrice()) {
		return a.LimitPrice().LessThan(b.LimitPrice())
	}
	return a.Meta().TsExchangeReceivedNs > b.Meta().TsExchangeReceivedNs
}

// askLess reports whether a sorts before b in the asks sequence:
// descending price, with the older timestamp (at equal price) placed later.
func askLess[Q currency.Unit](a, b orderstate.PendingLimitOrder[Q]) bool {
	if !a.LimitPrice().Equal(b.LimitPrice()) {
		return a.LimitPrice().GreaterThan(b.LimitPrice())
	}
	return a.Meta().TsExchangeReceivedNs > b.Meta().TsExchangeReceivedNs
}

func lessFor[Q currency.Unit](side types.Side) func(a, b orderstate.PendingLimitOrder[Q]) bool {
	if side == types.Buy {
		return bidLess[Q]
	}
	return askLess[Q]
}

// TryInsert accepts a pending order onto its side of the book, finding its
// sorted position by linear scan (this book is tiny by construction — a
// contiguous sorted slice beats a tree here, per spec.md §9).
func (b *ActiveOrders[Q, M]) TryInsert(order orderstate.PendingLimitOrder[Q]) error {
	side := order.Side()
	slice := b.sideSlice(side)
	if len(slice) >= b.maxPerSide {
		return xerrors.ErrMaxActiveOrders
	}
	less := lessFor[Q](side)
	idx := len(slice)
	for i, o := range slice {
		if less(order, o) {
			idx = i
			break
		}
	}
	out := make([]orderstate.PendingLimitOrder[Q], 0, len(slice)+1)
	out = append(out, slice[:idx]...)
	out = append(out, order)
	out = append(out, slice[idx:]...)
	b.setSideSlice(side, out)
	b.addSideNotional(side, b.math.Notional(order.RemainingQuantity(), order.LimitPrice()))
	return nil
}

// removeAt deletes the order at index i from side's slice and returns it.
func (b *ActiveOrders[Q, M]) removeAt(side types.Side, i int) orderstate.PendingLimitOrder[Q] {
	slice := b.sideSlice(side)
	removed := slice[i]
	out := make([]orderstate.PendingLimitOrder[Q], 0, len(slice)-1)
	out = append(out, slice[:i]...)
	out = append(out, slice[i+1:]...)
	b.setSideSlice(side, out)
	b.addSideNotional(side, b.math.Notional(removed.RemainingQuantity(), removed.LimitPrice()).Neg())
	return removed
}

// RemoveByOrderID removes and returns the order with the given exchange
// order id, searching both sides.
func (b *ActiveOrders[Q, M]) RemoveByOrderID(id timeutil.OrderID) (orderstate.PendingLimitOrder[Q], error) {
	for _, side := range []types.Side{types.Buy, types.Sell} {
		slice := b.sideSlice(side)
		for i, o := range slice {
			if o.Meta().OrderID == id {
				return b.removeAt(side, i), nil
			}
		}
	}
	return orderstate.PendingLimitOrder[Q]{}, xerrors.ErrOrderIDNotFound
}

// RemoveByUserOrderID removes and returns the order with the given
// caller-supplied correlation id.
func (b *ActiveOrders[Q, M]) RemoveByUserOrderID(id uint64) (orderstate.PendingLimitOrder[Q], error) {
	for _, side := range []types.Side{types.Buy, types.Sell} {
		slice := b.sideSlice(side)
		for i, o := range slice {
			if uoid, has := o.UserOrderID(); has && uoid == id {
				return b.removeAt(side, i), nil
			}
		}
	}
	return orderstate.PendingLimitOrder[Q]{}, xerrors.ErrUserOrderIDNotFound
}

// PeekBestBid returns the highest-price resting buy order, if any.
func (b *ActiveOrders[Q, M]) PeekBestBid() (orderstate.PendingLimitOrder[Q], bool) {
	if len(b.bids) == 0 {
		return orderstate.PendingLimitOrder[Q]{}, false
	}
	return b.bids[len(b.bids)-1], true
}

// PeekBestAsk returns the lowest-price resting sell order, if any.
func (b *ActiveOrders[Q, M]) PeekBestAsk() (orderstate.PendingLimitOrder[Q], bool) {
	if len(b.asks) == 0 {
		return orderstate.PendingLimitOrder[Q]{}, false
	}
	return b.asks[len(b.asks)-1], true
}

// PeekBest dispatches to PeekBestBid/PeekBestAsk by side.
func (b *ActiveOrders[Q, M]) PeekBest(side types.Side) (orderstate.PendingLimitOrder[Q], bool) {
	if side == types.Buy {
		return b.PeekBestBid()
	}
	return b.PeekBestAsk()
}

// FillOutcome describes the result of filling the current best order on a
// side by some quantity.
type FillOutcome[Q currency.Unit] struct {
	Order          orderstate.PendingLimitOrder[Q] // the order's state *before* this fill
	FillQty        currency.Money[Q]
	FullyFilled    bool
	Filled         orderstate.FilledLimitOrder[Q]  // valid iff FullyFilled
	Updated        orderstate.PendingLimitOrder[Q] // valid iff !FullyFilled
}

// FillBest fills the current best resting order on side by fillQty at
// fillPrice. It removes the order from the book on a full fill, or
// replaces it in place with reduced remaining quantity on a partial fill,
// adjusting the side's notional_sum by the delta either way.
func (b *ActiveOrders[Q, M]) FillBest(side types.Side, fillQty currency.Money[Q], fillPrice currency.Money[currency.Quote], ts timeutil.TimestampNs) (FillOutcome[Q], bool) {
	best, ok := b.PeekBest(side)
	if !ok {
		return FillOutcome[Q]{}, false
	}
	idx := len(b.sideSlice(side)) - 1
	before := best
	notionalBefore := b.math.Notional(best.RemainingQuantity(), best.LimitPrice())

	updated, fullyFilled, err := best.WithFill(fillQty, fillPrice)
	if err != nil {
		return FillOutcome[Q]{}, false
	}

	if fullyFilled {
		b.removeAt(side, idx) // removes `before`; notional delta handled below instead of double counting
		// removeAt already subtracted notionalBefore; nothing further owed since
		// remaining quantity after a full fill is zero.
		return FillOutcome[Q]{Order: before, FillQty: fillQty, FullyFilled: true, Filled: updated.IntoFilled(ts)}, true
	}

	notionalAfter := b.math.Notional(updated.RemainingQuantity(), updated.LimitPrice())
	slice := b.sideSlice(side)
	slice[idx] = updated
	b.setSideSlice(side, slice)
	b.addSideNotional(side, notionalAfter.Sub(notionalBefore))
	return FillOutcome[Q]{Order: before, FillQty: fillQty, FullyFilled: false, Updated: updated}, true
}

// OrderMargin prices the book's current resting orders against pos using
// the pure order-margin function (spec.md §4.2).
func (b *ActiveOrders[Q, M]) OrderMargin(pos margin.PositionView[M], initMarginReq decimal.Decimal) currency.Money[M] {
	return margin.OrderMargin(b.bidsNotional, b.asksNotional, pos, initMarginReq)
}

// OrderMarginWithOrder computes what the order margin would be if
// candidate were also resting in the book, without mutating the book —
// the preview the limit-order risk check needs (spec.md §4.1, §4.5).
func (b *ActiveOrders[Q, M]) OrderMarginWithOrder(candidate orderstate.NewLimitOrder[Q], pos margin.PositionView[M], initMarginReq decimal.Decimal) currency.Money[M] {
	notional := b.math.Notional(candidate.Quantity(), candidate.LimitPrice())
	buyNotional, sellNotional := b.bidsNotional, b.asksNotional
	if candidate.Side() == types.Buy {
		buyNotional = buyNotional.Add(notional)
	} else {
		sellNotional = sellNotional.Add(notional)
	}
	return margin.OrderMargin(buyNotional, sellNotional, pos, initMarginReq)
}

func (b *ActiveOrders[Q, M]) Bids() []orderstate.PendingLimitOrder[Q] { return append([]orderstate.PendingLimitOrder[Q]{}, b.bids...) }
func (b *ActiveOrders[Q, M]) Asks() []orderstate.PendingLimitOrder[Q] { return append([]orderstate.PendingLimitOrder[Q]{}, b.asks...) }

func (b *ActiveOrders[Q, M]) String() string {
	return fmt.Sprintf("book{bids=%d(%s) asks=%d(%s)}", len(b.bids), b.bidsNotional, len(b.asks), b.asksNotional)
}
