// Package margin implements the two pieces of collateral accounting the
// rest of the engine leans on: the Balances ledger (named state
// transitions, no direct field arithmetic) and the pure order-margin
// function that prices outstanding resting orders net of the position's
// offsetting exposure.
package margin

import (
	"fmt"

	"futures-sim/internal/invariant"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/xerrors"
)

// Balances is the margin-currency ledger backing one account: available
// (free) collateral, collateral locked against the open position, and
// collateral locked against resting orders. Every mutation goes through a
// named operation below — never direct arithmetic on the fields — so the
// non-negativity invariant can be checked in one place.
type Balances[M currency.Unit] struct {
	available     currency.Money[M]
	positionMargin currency.Money[M]
	orderMargin    currency.Money[M]
	totalFeesPaid  currency.Money[M]
}

// NewBalances opens a ledger with a starting available balance.
func NewBalances[M currency.Unit](starting currency.Money[M]) *Balances[M] {
	return &Balances[M]{available: starting}
}

func (b *Balances[M]) Available() currency.Money[M]      { return b.available }
func (b *Balances[M]) PositionMargin() currency.Money[M] { return b.positionMargin }
func (b *Balances[M]) OrderMargin() currency.Money[M]    { return b.orderMargin }
func (b *Balances[M]) TotalFeesPaid() currency.Money[M]  { return b.totalFeesPaid }

// Equity is available + position_margin + order_margin, which spec.md §8's
// property 2 pins to starting_balance + realized_pnl - total_fees_paid.
func (b *Balances[M]) Equity() currency.Money[M] {
	return b.available.Add(b.positionMargin).Add(b.orderMargin)
}

func (b *Balances[M]) checkNonNegative() {
	invariant.Check(!b.available.IsNegative(), "margin: available balance went negative: %s", b.available)
	invariant.Check(!b.positionMargin.IsNegative(), "margin: position margin went negative: %s", b.positionMargin)
	invariant.Check(!b.orderMargin.IsNegative(), "margin: order margin went negative: %s", b.orderMargin)
}

// TryReserveOrderMargin moves m from available to order_margin. It's the
// one ledger operation the spec documents as fallible at the precondition
// (an insufficient-balance submission is an ordinary rejection, not a
// programming bug), so it returns ErrNotEnoughAvailableBalance rather than
// asserting.
func (b *Balances[M]) TryReserveOrderMargin(m currency.Money[M]) error {
	if m.LessThanOrEqual(currency.Zero[M]()) {
		return fmt.Errorf("margin: reserve amount %s must be positive", m)
	}
	if b.available.LessThan(m) {
		return xerrors.ErrNotEnoughAvailableBalance
	}
	b.available = b.available.Sub(m)
	b.orderMargin = b.orderMargin.Add(m)
	b.checkNonNegative()
	return nil
}

// FreeOrderMargin releases m from order_margin back to available.
func (b *Balances[M]) FreeOrderMargin(m currency.Money[M]) {
	invariant.Check(m.IsPositive() && m.LessThanOrEqual(b.orderMargin), "margin: free_order_margin precondition violated: m=%s order_margin=%s", m, b.orderMargin)
	b.orderMargin = b.orderMargin.Sub(m)
	b.available = b.available.Add(m)
	b.checkNonNegative()
}

// FillOrder moves m from order_margin to position_margin when a resting
// order fills and its collateral converts into position collateral.
func (b *Balances[M]) FillOrder(m currency.Money[M]) {
	invariant.Check(m.IsPositive() && m.LessThanOrEqual(b.orderMargin), "margin: fill_order precondition violated: m=%s order_margin=%s", m, b.orderMargin)
	b.orderMargin = b.orderMargin.Sub(m)
	b.positionMargin = b.positionMargin.Add(m)
	b.checkNonNegative()
}

// FreePositionMargin releases m from position_margin back to available,
// used when a position is reduced or closed.
func (b *Balances[M]) FreePositionMargin(m currency.Money[M]) {
	invariant.Check(m.IsPositive() && m.LessThanOrEqual(b.positionMargin), "margin: free_position_margin precondition violated: m=%s position_margin=%s", m, b.positionMargin)
	b.positionMargin = b.positionMargin.Sub(m)
	b.available = b.available.Add(m)
	b.checkNonNegative()
}

// ApplyPnL books realized PnL (p may be negative) directly to available.
func (b *Balances[M]) ApplyPnL(p currency.Money[M]) {
	b.available = b.available.Add(p)
	b.checkNonNegative()
}

// AccountForFee deducts a signed fee from available (f negative is a
// maker rebate, which credits available).
func (b *Balances[M]) AccountForFee(f currency.Money[M]) {
	b.available = b.available.Sub(f)
	b.totalFeesPaid = b.totalFeesPaid.Add(f)
	b.checkNonNegative()
}
