// Package filters validates prices and quantities against the exchange's
// tradable-range and tick-size rules before they're allowed to enter the
// book or a market update.
package filters

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures-sim/pkg/currency"
	"futures-sim/pkg/xerrors"
)

// PriceFilter bounds and quantizes every price entering the system: limit
// prices, trade prices, quote updates.
type PriceFilter struct {
	MinPrice currency.Money[currency.Quote]
	MaxPrice currency.Money[currency.Quote]
	TickSize currency.Money[currency.Quote]
}

// Validate enforces min/max bounds and tick-size alignment on a price.
func (f PriceFilter) Validate(price currency.Money[currency.Quote]) error {
	if price.LessThan(f.MinPrice) || price.GreaterThan(f.MaxPrice) {
		return fmt.Errorf("price %s outside [%s, %s]: %w", price, f.MinPrice, f.MaxPrice, xerrors.ErrLimitPriceOutOfFilter)
	}
	if !onTick(price.Decimal(), f.TickSize.Decimal()) {
		return fmt.Errorf("price %s not a multiple of tick %s: %w", price, f.TickSize, xerrors.ErrInvalidTickSize)
	}
	return nil
}

// QuantityFilter bounds and quantizes every order/fill quantity, generic
// over whichever currency the instrument denominates quantity in (Base for
// linear futures, Quote for inverse).
type QuantityFilter[Q currency.Unit] struct {
	MinQty   currency.Money[Q] // enforced only when HasMin is set; also the tick-alignment origin
	MaxQty   currency.Money[Q] // enforced only when HasMax is set
	HasMin   bool
	HasMax   bool
	TickSize currency.Money[Q]
}

// Validate enforces nonzero, min/max bounds (if set), and tick alignment
// relative to MinQty.
func (f QuantityFilter[Q]) Validate(qty currency.Money[Q]) error {
	if qty.LessThanOrEqual(currency.Zero[Q]()) {
		return xerrors.ErrOrderQuantityLTEZero
	}
	if f.HasMin && qty.LessThan(f.MinQty) {
		return fmt.Errorf("quantity %s below minimum %s: %w", qty, f.MinQty, xerrors.ErrQuantityOutOfFilter)
	}
	if f.HasMax && qty.GreaterThan(f.MaxQty) {
		return fmt.Errorf("quantity %s above maximum %s: %w", qty, f.MaxQty, xerrors.ErrQuantityOutOfFilter)
	}
	base := f.MinQty.Decimal()
	if !onTick(qty.Decimal().Sub(base), f.TickSize.Decimal()) {
		return fmt.Errorf("quantity %s not aligned to tick %s: %w", qty, f.TickSize, xerrors.ErrQuantityOutOfFilter)
	}
	return nil
}

// onTick reports whether d is an integer multiple of tick (tick == 0 means
// "no step constraint").
func onTick(d, tick decimal.Decimal) bool {
	if tick.IsZero() {
		return true
	}
	_, rem := d.QuoRem(tick, 0)
	return rem.IsZero()
}
