// Package position implements position accounting: a tagged union of
// Neutral, Long, and Short, the weighted-average entry price, and
// realized-PnL settlement on every fill (spec.md §4.4). The weighted-
// average-entry and realize-PnL-on-reduce shape is grounded on the
// teacher's own internal/strategy.Inventory.OnFill (applyYesFill/
// applyNoFill), generalized here from a float binary-outcome inventory to
// the fixed-point, direction-tagged, dual-currency position spec.md
// requires.
package position

import (
	"github.com/shopspring/decimal"

	"futures-sim/internal/futuresmath"
	"futures-sim/internal/margin"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/types"
)

// Direction tags which side of the market a non-neutral position holds.
type Direction int

const (
	Neutral Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "neutral"
	}
}

// Inner is the state of a non-neutral position: a strictly-positive
// quantity, the cumulative cost basis, and fees outstanding against it.
type Inner[Q currency.Unit] struct {
	Quantity        currency.Money[Q]
	TotalCost       currency.Money[currency.Quote]
	OutstandingFees decimal.Decimal
}

// EntryPrice derives the weighted-average entry price: total_cost/quantity.
func (i Inner[Q]) EntryPrice() currency.Money[currency.Quote] {
	if i.Quantity.IsZero() {
		return currency.Zero[currency.Quote]()
	}
	return i.TotalCost.DivFrac(i.Quantity.Decimal())
}

// Account is the position for one instrument: Neutral, or Long/Short with
// an Inner. Direction is the tag; Inner.Quantity is always nonnegative.
type Account[Q currency.Unit, M currency.Unit] struct {
	math      futuresmath.Math[Q, M]
	direction Direction
	inner     Inner[Q]
}

// New opens an empty (Neutral) position for the given futures math.
func New[Q currency.Unit, M currency.Unit](math futuresmath.Math[Q, M]) *Account[Q, M] {
	return &Account[Q, M]{math: math}
}

func (a *Account[Q, M]) Direction() Direction    { return a.direction }
func (a *Account[Q, M]) Quantity() currency.Money[Q] { return a.inner.Quantity }
func (a *Account[Q, M]) EntryPrice() currency.Money[currency.Quote] {
	return a.inner.EntryPrice()
}

// Notional is the position's current notional value at its entry price,
// in margin currency — the value the order-margin function nets resting
// orders against.
func (a *Account[Q, M]) Notional() currency.Money[M] {
	if a.direction == Neutral {
		return currency.Zero[M]()
	}
	return a.math.Notional(a.inner.Quantity, a.inner.EntryPrice())
}

// View projects the position into the minimal shape margin.OrderMargin
// needs.
func (a *Account[Q, M]) View() margin.PositionView[M] {
	switch a.direction {
	case Long:
		return margin.PositionView[M]{Side: margin.PositionLong, Notional: a.Notional()}
	case Short:
		return margin.PositionView[M]{Side: margin.PositionShort, Notional: a.Notional()}
	default:
		return margin.PositionView[M]{Side: margin.PositionNeutral}
	}
}

// sideOf reports the Direction a fill on `side` would open/add to.
func sideOf(side types.Side) Direction {
	return DirectionForSide(side)
}

// DirectionForSide reports which Direction a fill on side would open or
// add to: Buy opens/adds-to Long, Sell opens/adds-to Short. Exported for
// the risk engine, which needs to compare an incoming order's side
// against the position's existing direction.
func DirectionForSide(side types.Side) Direction {
	if side == types.Buy {
		return Long
	}
	return Short
}

// UnrealizedPnL returns the mark-to-market PnL of the current position at
// exitPrice, without settling it.
func (a *Account[Q, M]) UnrealizedPnL(exitPrice currency.Money[currency.Quote]) currency.Money[M] {
	if a.direction == Neutral {
		return currency.Zero[M]()
	}
	pnl := a.math.PnL(a.inner.EntryPrice(), exitPrice, a.inner.Quantity)
	if a.direction == Short {
		return pnl.Neg()
	}
	return pnl
}

// ChangeResult describes the balances-ledger effect a Change call had,
// leaving it to the caller to apply the named Balances operations — Account
// itself holds no reference to a ledger, so it stays a pure state machine
// the exchange facade drives.
type ChangeResult[M currency.Unit] struct {
	RealizedPnL    currency.Money[M] // apply via bal.ApplyPnL; zero if nothing closed
	MarginReleased currency.Money[M] // apply via bal.FreePositionMargin; zero if nothing closed
	MarginRequired currency.Money[M] // apply via bal.FillOrder, against margin already reserved in order_margin; zero if no new exposure opened
}

// Change is the position's sole mutator (spec.md §4.4): it applies a fill
// of filledQty at fillPrice on `side` and reports the resulting realized
// PnL, margin released, and new margin required, for the caller to book
// against a Balances ledger via its named operations.
func (a *Account[Q, M]) Change(filledQty currency.Money[Q], fillPrice currency.Money[currency.Quote], side types.Side, initMarginReq decimal.Decimal) ChangeResult[M] {
	addedNotional := a.math.Notional(filledQty, fillPrice)
	incomingDir := sideOf(side)

	switch {
	case a.direction == Neutral:
		a.direction = incomingDir
		a.inner = Inner[Q]{Quantity: filledQty, TotalCost: fillPrice.MulFrac(filledQty.Decimal())}
		return ChangeResult[M]{MarginRequired: addedNotional.MulFrac(initMarginReq)}

	case a.direction == incomingDir:
		// Same-direction add: weighted-average entry via total_cost
		// accumulation, no PnL realized.
		a.inner.Quantity = a.inner.Quantity.Add(filledQty)
		a.inner.TotalCost = a.inner.TotalCost.Add(fillPrice.MulFrac(filledQty.Decimal()))
		return ChangeResult[M]{MarginRequired: addedNotional.MulFrac(initMarginReq)}

	default:
		// Opposite direction: reduces, closes, or closes-and-flips.
		entry := a.inner.EntryPrice()
		switch {
		case filledQty.LessThan(a.inner.Quantity):
			pnl := a.realize(entry, fillPrice, filledQty)
			releaseFrac := filledQty.Decimal().DivRound(a.inner.Quantity.Decimal(), currency.DefaultScale)
			released := a.Notional().MulFrac(initMarginReq).MulFrac(releaseFrac)
			a.inner.Quantity = a.inner.Quantity.Sub(filledQty)
			a.inner.TotalCost = entry.MulFrac(a.inner.Quantity.Decimal())
			return ChangeResult[M]{RealizedPnL: pnl, MarginReleased: released}

		case filledQty.Equal(a.inner.Quantity):
			pnl := a.realize(entry, fillPrice, filledQty)
			released := a.Notional().MulFrac(initMarginReq)
			a.direction = Neutral
			a.inner = Inner[Q]{}
			return ChangeResult[M]{RealizedPnL: pnl, MarginReleased: released}

		default:
			// Closes fully, then opens the remainder on the new side.
			closingQty := a.inner.Quantity
			pnl := a.realize(entry, fillPrice, closingQty)
			released := a.Notional().MulFrac(initMarginReq)
			remainder := filledQty.Sub(closingQty)

			a.direction = incomingDir
			a.inner = Inner[Q]{Quantity: remainder, TotalCost: fillPrice.MulFrac(remainder.Decimal())}
			required := a.math.Notional(remainder, fillPrice).MulFrac(initMarginReq)
			return ChangeResult[M]{RealizedPnL: pnl, MarginReleased: released, MarginRequired: required}
		}
	}
}

// realize computes signed PnL for closing qty of the current direction at
// exitPrice vs entry, using the futures math and negating for Short.
func (a *Account[Q, M]) realize(entry, exit currency.Money[currency.Quote], qty currency.Money[Q]) currency.Money[M] {
	pnl := a.math.PnL(entry, exit, qty)
	if a.direction == Short {
		return pnl.Neg()
	}
	return pnl
}
