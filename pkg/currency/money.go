// Package currency implements the fixed-point, phantom-typed money values
// the rest of the engine is built on. Every amount in the engine is a
// Money[Base] or Money[Quote] value backed by an arbitrary-precision
// decimal, never a float — the unit parameter is a compile-time marker,
// not a runtime field, so adding a Money[Base] to a Money[Quote] is a
// type error rather than a silent bug.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Base marks an amount denominated in a contract's underlying asset,
// e.g. BTC for a BTC/USD perpetual.
type Base struct{}

// Quote marks an amount denominated in a contract's quote asset, e.g. USD.
type Quote struct{}

// Unit constrains the phantom currency marker of a Money value to one of
// the two supported denominations.
type Unit interface {
	Base | Quote
}

// DefaultScale is the number of decimal places a division or conversion
// result is rounded to when it cannot be represented exactly. It stands in
// for the compile-time exponent of a fixed-point integer type: every value
// in the engine is an arbitrary-precision decimal.Decimal truncated/rounded
// to this scale at the boundaries where exact division isn't possible
// (inverse-contract notional conversion, DivFrac). Multiplication by a
// fraction (MulFrac, e.g. fee rates) is exact and not rescaled.
const DefaultScale = 8

// Money is a fixed-point amount tagged at compile time with the currency
// it's denominated in.
type Money[U Unit] struct {
	d decimal.Decimal
}

// New wraps an existing decimal as a Money value.
func New[U Unit](d decimal.Decimal) Money[U] {
	return Money[U]{d: d}
}

// NewFromInt builds a whole-unit Money value.
func NewFromInt[U Unit](i int64) Money[U] {
	return Money[U]{d: decimal.NewFromInt(i)}
}

// NewFromString parses a decimal literal into a Money value.
func NewFromString[U Unit](s string) (Money[U], error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money[U]{}, fmt.Errorf("currency: parse %q: %w", s, err)
	}
	return Money[U]{d: d}, nil
}

// Zero is the additive identity.
func Zero[U Unit]() Money[U] {
	return Money[U]{d: decimal.Zero}
}

// Decimal exposes the underlying decimal for callers that need to leave the
// phantom-typed world (formatting, persistence boundaries, test fixtures).
func (m Money[U]) Decimal() decimal.Decimal { return m.d }

func (m Money[U]) Add(o Money[U]) Money[U] { return Money[U]{d: m.d.Add(o.d)} }
func (m Money[U]) Sub(o Money[U]) Money[U] { return Money[U]{d: m.d.Sub(o.d)} }
func (m Money[U]) Neg() Money[U]           { return Money[U]{d: m.d.Neg()} }
func (m Money[U]) Abs() Money[U]           { return Money[U]{d: m.d.Abs()} }

// MulFrac scales a Money value by a dimensionless fraction (leverage
// factors, fee rates, margin ratios).
func (m Money[U]) MulFrac(f decimal.Decimal) Money[U] {
	return Money[U]{d: m.d.Mul(f)}
}

// DivFrac divides a Money value by a dimensionless fraction, rounding to
// DefaultScale when the result isn't exact.
func (m Money[U]) DivFrac(f decimal.Decimal) Money[U] {
	return Money[U]{d: m.d.DivRound(f, DefaultScale)}
}

func (m Money[U]) Cmp(o Money[U]) int                   { return m.d.Cmp(o.d) }
func (m Money[U]) Equal(o Money[U]) bool                { return m.d.Equal(o.d) }
func (m Money[U]) GreaterThan(o Money[U]) bool          { return m.d.GreaterThan(o.d) }
func (m Money[U]) GreaterThanOrEqual(o Money[U]) bool   { return m.d.GreaterThanOrEqual(o.d) }
func (m Money[U]) LessThan(o Money[U]) bool             { return m.d.LessThan(o.d) }
func (m Money[U]) LessThanOrEqual(o Money[U]) bool      { return m.d.LessThanOrEqual(o.d) }
func (m Money[U]) IsZero() bool                         { return m.d.IsZero() }
func (m Money[U]) IsPositive() bool                     { return m.d.IsPositive() }
func (m Money[U]) IsNegative() bool                     { return m.d.IsNegative() }

// Min returns the lesser of the two values.
func Min[U Unit](a, b Money[U]) Money[U] {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the greater of the two values.
func Max[U Unit](a, b Money[U]) Money[U] {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func (m Money[U]) String() string { return m.d.String() }

// QuoteFromBase converts a base-denominated quantity to quote notional at
// the given price: notional = qty * price.
func QuoteFromBase(qty Money[Base], price Money[Quote]) Money[Quote] {
	return Money[Quote]{d: qty.d.Mul(price.d)}
}

// BaseFromQuote converts quote notional to a base-denominated quantity at
// the given price: qty = notional / price. Truncates toward zero at
// DefaultScale when the division isn't exact.
func BaseFromQuote(notional Money[Quote], price Money[Quote]) Money[Base] {
	q, _ := notional.d.QuoRem(price.d, DefaultScale)
	return Money[Base]{d: q}
}
