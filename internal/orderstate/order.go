// Package orderstate implements the order type-state machine: New, Pending
// and Filled are distinct Go types, not one struct with optional fields.
// Transition methods consume the prior state and produce the next, so a
// New order can never carry exchange metadata and a Filled order can
// never be mutated further.
package orderstate

import (
	"fmt"

	"futures-sim/pkg/currency"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/types"
	"futures-sim/pkg/xerrors"
)

// Meta is the exchange-assigned metadata an order receives on acceptance.
type Meta struct {
	OrderID              timeutil.OrderID
	TsExchangeReceivedNs timeutil.TimestampNs
}

// FillProgress tracks how much of a resting order has filled so far.
// The zero value is Unfilled; WithFill accumulates the quantity-weighted
// average fill price, which is how spec.md avoids rounding drift across
// partial fills instead of re-deriving an average from individual fills.
type FillProgress[Q currency.Unit] struct {
	filled        bool
	cumulativeQty currency.Money[Q]
	avgPrice      currency.Money[currency.Quote]
}

// Unfilled is the zero FillProgress.
func Unfilled[Q currency.Unit]() FillProgress[Q] { return FillProgress[Q]{} }

func (f FillProgress[Q]) IsFilled() bool                        { return f.filled }
func (f FillProgress[Q]) CumulativeQty() currency.Money[Q]       { return f.cumulativeQty }
func (f FillProgress[Q]) AvgPrice() currency.Money[currency.Quote] { return f.avgPrice }

// WithFill folds in another fill at fillQty/fillPrice and returns the
// updated progress.
func (f FillProgress[Q]) WithFill(fillQty currency.Money[Q], fillPrice currency.Money[currency.Quote]) FillProgress[Q] {
	if !f.filled {
		return FillProgress[Q]{filled: true, cumulativeQty: fillQty, avgPrice: fillPrice}
	}
	totalQty := f.cumulativeQty.Add(fillQty)
	// weighted-mean update: new_avg = (old_qty*old_avg + fill_qty*fill_price) / total_qty
	oldNotional := f.avgPrice.MulFrac(f.cumulativeQty.Decimal())
	addedNotional := fillPrice.MulFrac(fillQty.Decimal())
	newAvg := oldNotional.Add(addedNotional).DivFrac(totalQty.Decimal())
	return FillProgress[Q]{filled: true, cumulativeQty: totalQty, avgPrice: newAvg}
}

// ---------------------------------------------------------------------
// Limit orders
// ---------------------------------------------------------------------

// NewLimitOrder is a limit order the caller has constructed but the
// exchange has not yet accepted.
type NewLimitOrder[Q currency.Unit] struct {
	userOrderID    uint64
	hasUserOrderID bool
	side           types.Side
	limitPrice     currency.Money[currency.Quote]
	quantity       currency.Money[Q]
	rePricing      types.RePricingPolicy
}

// NewLimit constructs a New limit order, rejecting non-positive price or
// quantity at the door.
func NewLimit[Q currency.Unit](side types.Side, limitPrice currency.Money[currency.Quote], qty currency.Money[Q]) (NewLimitOrder[Q], error) {
	if limitPrice.LessThanOrEqual(currency.Zero[currency.Quote]()) {
		return NewLimitOrder[Q]{}, xerrors.ErrLimitPriceLTEZero
	}
	if qty.LessThanOrEqual(currency.Zero[Q]()) {
		return NewLimitOrder[Q]{}, xerrors.ErrOrderQuantityLTEZero
	}
	return NewLimitOrder[Q]{side: side, limitPrice: limitPrice, quantity: qty}, nil
}

// NewLimitWithUserOrderID is NewLimit plus a caller-supplied correlation id.
func NewLimitWithUserOrderID[Q currency.Unit](side types.Side, limitPrice currency.Money[currency.Quote], qty currency.Money[Q], userOrderID uint64) (NewLimitOrder[Q], error) {
	o, err := NewLimit(side, limitPrice, qty)
	if err != nil {
		return NewLimitOrder[Q]{}, err
	}
	o.userOrderID, o.hasUserOrderID = userOrderID, true
	return o, nil
}

// WithRePricing attaches a re-pricing policy for submission-time crossing.
func (o NewLimitOrder[Q]) WithRePricing(p types.RePricingPolicy) NewLimitOrder[Q] {
	o.rePricing = p
	return o
}

func (o NewLimitOrder[Q]) Side() types.Side                          { return o.side }
func (o NewLimitOrder[Q]) LimitPrice() currency.Money[currency.Quote] { return o.limitPrice }
func (o NewLimitOrder[Q]) Quantity() currency.Money[Q]                { return o.quantity }
func (o NewLimitOrder[Q]) RePricing() types.RePricingPolicy           { return o.rePricing }
func (o NewLimitOrder[Q]) UserOrderID() (uint64, bool)                { return o.userOrderID, o.hasUserOrderID }

// WithLimitPrice returns a copy re-priced to a new limit price, used by the
// RePricingSlide policy at submission time.
func (o NewLimitOrder[Q]) WithLimitPrice(p currency.Money[currency.Quote]) NewLimitOrder[Q] {
	o.limitPrice = p
	return o
}

// IntoPending accepts the order onto the book with exchange-assigned meta.
func (o NewLimitOrder[Q]) IntoPending(meta Meta) PendingLimitOrder[Q] {
	return PendingLimitOrder[Q]{
		meta:              meta,
		userOrderID:       o.userOrderID,
		hasUserOrderID:    o.hasUserOrderID,
		side:              o.side,
		limitPrice:        o.limitPrice,
		originalQuantity:  o.quantity,
		remainingQuantity: o.quantity,
		rePricing:         o.rePricing,
		progress:          Unfilled[Q](),
	}
}

// PendingLimitOrder is resting on the book, or in the process of filling.
type PendingLimitOrder[Q currency.Unit] struct {
	meta              Meta
	userOrderID       uint64
	hasUserOrderID    bool
	side              types.Side
	limitPrice        currency.Money[currency.Quote]
	originalQuantity  currency.Money[Q]
	remainingQuantity currency.Money[Q]
	rePricing         types.RePricingPolicy
	progress          FillProgress[Q]
}

func (o PendingLimitOrder[Q]) Meta() Meta                                  { return o.meta }
func (o PendingLimitOrder[Q]) Side() types.Side                             { return o.side }
func (o PendingLimitOrder[Q]) LimitPrice() currency.Money[currency.Quote]   { return o.limitPrice }
func (o PendingLimitOrder[Q]) RemainingQuantity() currency.Money[Q]         { return o.remainingQuantity }
func (o PendingLimitOrder[Q]) OriginalQuantity() currency.Money[Q]          { return o.originalQuantity }
func (o PendingLimitOrder[Q]) UserOrderID() (uint64, bool)                  { return o.userOrderID, o.hasUserOrderID }
func (o PendingLimitOrder[Q]) Progress() FillProgress[Q]                    { return o.progress }
func (o PendingLimitOrder[Q]) Notional() currency.Money[currency.Quote] {
	return o.limitPrice.MulFrac(o.remainingQuantity.Decimal())
}

// WithFill reduces remaining quantity by fillQty at fillPrice and returns
// the updated order plus whether it is now fully filled. It rejects an
// update that does not strictly reduce quantity, matching spec.md §4.1's
// fill contract.
func (o PendingLimitOrder[Q]) WithFill(fillQty currency.Money[Q], fillPrice currency.Money[currency.Quote]) (PendingLimitOrder[Q], bool, error) {
	if fillQty.LessThanOrEqual(currency.Zero[Q]()) || fillQty.GreaterThan(o.remainingQuantity) {
		return o, false, fmt.Errorf("orderstate: fill quantity %s must be in (0, %s]", fillQty, o.remainingQuantity)
	}
	o.remainingQuantity = o.remainingQuantity.Sub(fillQty)
	o.progress = o.progress.WithFill(fillQty, fillPrice)
	return o, o.remainingQuantity.IsZero(), nil
}

// IntoFilled transitions a fully-filled pending order to its terminal state.
func (o PendingLimitOrder[Q]) IntoFilled(tsExecutedNs timeutil.TimestampNs) FilledLimitOrder[Q] {
	return FilledLimitOrder[Q]{
		meta:         o.meta,
		tsExecutedNs: tsExecutedNs,
		fillPrice:    o.progress.AvgPrice(),
		filledQty:    o.originalQuantity,
	}
}

// FilledLimitOrder is terminal: fully executed, no further mutation.
type FilledLimitOrder[Q currency.Unit] struct {
	meta         Meta
	tsExecutedNs timeutil.TimestampNs
	fillPrice    currency.Money[currency.Quote]
	filledQty    currency.Money[Q]
}

func (o FilledLimitOrder[Q]) Meta() Meta                                { return o.meta }
func (o FilledLimitOrder[Q]) TsExecutedNs() timeutil.TimestampNs         { return o.tsExecutedNs }
func (o FilledLimitOrder[Q]) FillPrice() currency.Money[currency.Quote]  { return o.fillPrice }
func (o FilledLimitOrder[Q]) FilledQuantity() currency.Money[Q]          { return o.filledQty }

// ---------------------------------------------------------------------
// Market orders
// ---------------------------------------------------------------------

// NewMarketOrder is a market order not yet submitted.
type NewMarketOrder[Q currency.Unit] struct {
	side     types.Side
	quantity currency.Money[Q]
}

// NewMarket constructs a New market order.
func NewMarket[Q currency.Unit](side types.Side, qty currency.Money[Q]) (NewMarketOrder[Q], error) {
	if qty.LessThanOrEqual(currency.Zero[Q]()) {
		return NewMarketOrder[Q]{}, xerrors.ErrOrderQuantityLTEZero
	}
	return NewMarketOrder[Q]{side: side, quantity: qty}, nil
}

func (o NewMarketOrder[Q]) Side() types.Side         { return o.side }
func (o NewMarketOrder[Q]) Quantity() currency.Money[Q] { return o.quantity }

// IntoFilled executes the market order immediately at fillPrice — market
// orders never rest, so they transition straight to Filled.
func (o NewMarketOrder[Q]) IntoFilled(meta Meta, tsExecutedNs timeutil.TimestampNs, fillPrice currency.Money[currency.Quote]) FilledMarketOrder[Q] {
	return FilledMarketOrder[Q]{meta: meta, tsExecutedNs: tsExecutedNs, fillPrice: fillPrice, filledQty: o.quantity, side: o.side}
}

// FilledMarketOrder is terminal.
type FilledMarketOrder[Q currency.Unit] struct {
	meta         Meta
	tsExecutedNs timeutil.TimestampNs
	fillPrice    currency.Money[currency.Quote]
	filledQty    currency.Money[Q]
	side         types.Side
}

func (o FilledMarketOrder[Q]) Meta() Meta                               { return o.meta }
func (o FilledMarketOrder[Q]) Side() types.Side                         { return o.side }
func (o FilledMarketOrder[Q]) TsExecutedNs() timeutil.TimestampNs        { return o.tsExecutedNs }
func (o FilledMarketOrder[Q]) FillPrice() currency.Money[currency.Quote] { return o.fillPrice }
func (o FilledMarketOrder[Q]) FilledQuantity() currency.Money[Q]         { return o.filledQty }
