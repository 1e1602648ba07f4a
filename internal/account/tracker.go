// Package account implements the optional account tracker: a pure
// observer that aggregates fill counts, volumes, and realized PnL without
// being a source of truth for balances or position. Grounded on
// original_source's acc_tracker.rs / account_tracker/full_track.rs.
package account

import (
	"github.com/shopspring/decimal"

	"futures-sim/pkg/currency"
	"futures-sim/pkg/types"
)

// Fill is one settled execution the exchange reports to the tracker.
type Fill[Q currency.Unit, M currency.Unit] struct {
	Side     types.Side
	Quantity currency.Money[Q]
	Price    currency.Money[currency.Quote]
	RealizedPnL currency.Money[M] // zero unless this fill reduced/closed a position
	IsMaker  bool
}

// Tracker aggregates fills for reporting; it never feeds back into
// balances, position, or risk decisions.
type Tracker[Q currency.Unit, M currency.Unit] struct {
	numTrades   int
	numWins     int
	numLosses   int
	buyVolume   currency.Money[Q]
	sellVolume  currency.Money[Q]
	realizedPnL currency.Money[M]
}

// New creates an empty tracker.
func New[Q currency.Unit, M currency.Unit]() *Tracker[Q, M] {
	return &Tracker[Q, M]{}
}

// RecordFill folds a settled fill into the running aggregates.
func (t *Tracker[Q, M]) RecordFill(f Fill[Q, M]) {
	t.numTrades++
	if f.Side == types.Buy {
		t.buyVolume = t.buyVolume.Add(f.Quantity)
	} else {
		t.sellVolume = t.sellVolume.Add(f.Quantity)
	}
	if !f.RealizedPnL.IsZero() {
		t.realizedPnL = t.realizedPnL.Add(f.RealizedPnL)
		if f.RealizedPnL.IsPositive() {
			t.numWins++
		} else {
			t.numLosses++
		}
	}
}

func (t *Tracker[Q, M]) NumTrades() int                   { return t.numTrades }
func (t *Tracker[Q, M]) TotalVolumeBuy() currency.Money[Q]  { return t.buyVolume }
func (t *Tracker[Q, M]) TotalVolumeSell() currency.Money[Q] { return t.sellVolume }
func (t *Tracker[Q, M]) RealizedPnL() currency.Money[M]     { return t.realizedPnL }

// WinRate is the fraction of PnL-realizing fills that were profitable;
// zero if no PnL-realizing fill has occurred yet.
func (t *Tracker[Q, M]) WinRate() decimal.Decimal {
	total := t.numWins + t.numLosses
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(t.numWins)).DivRound(decimal.NewFromInt(int64(total)), currency.DefaultScale)
}
