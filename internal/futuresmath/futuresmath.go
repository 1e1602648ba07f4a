// Package futuresmath is the strategy interface that keeps linear and
// inverse futures on one code path, the way original_source's
// PairedCurrency associated type does in the source this engine is built
// from (Rust has no direct equivalent of a type-level function; a Go
// generic interface parameterized on both currencies plays the same
// role). Position, book, and risk are all generic over [Q, M] and accept
// a Math[Q, M] implementation at construction; only the two
// implementations below exist, and only the pairing each one actually
// satisfies can be used to build an engine for it.
package futuresmath

import "futures-sim/pkg/currency"

// Math converts between a contract's quantity currency Q and its margin
// currency M, and derives signed realized PnL.
type Math[Q, M currency.Unit] interface {
	// Notional converts a quantity at a price into margin-currency
	// notional: qty*price for linear, qty/price for inverse.
	Notional(qty currency.Money[Q], price currency.Money[currency.Quote]) currency.Money[M]
	// PnL returns the signed realized PnL (long convention: positive
	// when exit is favorable) for closing qty at exit having entered at
	// entry.
	PnL(entry, exit currency.Money[currency.Quote], qty currency.Money[Q]) currency.Money[M]
}

// Linear implements Math[Base, Quote]: quote-margined futures.
// Notional = qty*price; PnL = qty*(exit-entry).
type Linear struct{}

func (Linear) Notional(qty currency.Money[currency.Base], price currency.Money[currency.Quote]) currency.Money[currency.Quote] {
	return currency.QuoteFromBase(qty, price)
}

func (Linear) PnL(entry, exit currency.Money[currency.Quote], qty currency.Money[currency.Base]) currency.Money[currency.Quote] {
	return currency.Money[currency.Quote]{}.Add(exit.Sub(entry)).MulFrac(qty.Decimal())
}

// Inverse implements Math[Quote, Base]: base-margined futures, contract
// quantity denominated in quote. Notional = qty/price;
// PnL = qty/entry - qty/exit.
type Inverse struct{}

func (Inverse) Notional(qty currency.Money[currency.Quote], price currency.Money[currency.Quote]) currency.Money[currency.Base] {
	return currency.BaseFromQuote(qty, price)
}

func (Inverse) PnL(entry, exit currency.Money[currency.Quote], qty currency.Money[currency.Quote]) currency.Money[currency.Base] {
	atEntry := currency.BaseFromQuote(qty, entry)
	atExit := currency.BaseFromQuote(qty, exit)
	return atEntry.Sub(atExit)
}
