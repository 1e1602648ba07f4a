// Package marketstate tracks the current top-of-book and the last-update
// timestamp, adapted from the teacher's market.Book (which tracked mid
// price and staleness off live WebSocket book events) into the
// replay-driven {bid, ask, timestamp} triple spec.md §3 and §4.6 need.
package marketstate

import (
	"fmt"

	"futures-sim/internal/filters"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/xerrors"
)

// State is the current bid, ask, and exchange timestamp, plus the price
// filter every update must satisfy.
type State struct {
	PriceFilter filters.PriceFilter

	bid         currency.Money[currency.Quote]
	ask         currency.Money[currency.Quote]
	timestampNs timeutil.TimestampNs
	hasQuote    bool
}

// New creates market state governed by the given price filter, with no
// quote yet observed.
func New(pf filters.PriceFilter) *State {
	return &State{PriceFilter: pf}
}

func (s *State) Bid() currency.Money[currency.Quote]  { return s.bid }
func (s *State) Ask() currency.Money[currency.Quote]  { return s.ask }
func (s *State) TimestampNs() timeutil.TimestampNs    { return s.timestampNs }
func (s *State) HasQuote() bool                       { return s.hasQuote }

// ValidatePrice enforces the price filter alone (used by Trade/SmartCandle
// updates, which don't carry a bid/ask pair).
func (s *State) ValidatePrice(price currency.Money[currency.Quote]) error {
	return s.PriceFilter.Validate(price)
}

// ValidateBidAsk enforces the price filter on both sides plus bid <= ask.
func (s *State) ValidateBidAsk(bid, ask currency.Money[currency.Quote]) error {
	if err := s.PriceFilter.Validate(bid); err != nil {
		return err
	}
	if err := s.PriceFilter.Validate(ask); err != nil {
		return err
	}
	if bid.GreaterThan(ask) {
		return fmt.Errorf("marketstate: bid %s above ask %s: %w", bid, ask, xerrors.ErrBidAboveAsk)
	}
	return nil
}

// SetBidAsk updates the top of book after validation has already passed.
func (s *State) SetBidAsk(bid, ask currency.Money[currency.Quote], ts timeutil.TimestampNs) {
	s.bid, s.ask, s.timestampNs, s.hasQuote = bid, ask, ts, true
}
