// Package contracts describes a tradable instrument: its filters, margin
// requirements, and fee schedule. It's read-only to the rest of the core —
// the external collaborator that assembles one is the backtest driver's
// configuration, not part of the simulated matching/margining engine.
package contracts

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures-sim/internal/filters"
	"futures-sim/pkg/currency"
)

// Specification is the read-only description of a single instrument.
// PriceFilter constrains quote/limit/trade prices; QuantityFilter
// constrains order and fill quantities, denominated in whichever currency
// this instrument's FuturesMath quantifies (Base for linear, Quote for
// inverse) — callers build the Specification for the pairing they intend
// to trade.
type Specification[Q currency.Unit] struct {
	Ticker           string
	PriceFilter      filters.PriceFilter
	QuantityFilter   filters.QuantityFilter[Q]
	InitMarginReq    decimal.Decimal // (0, 1]
	MaintenanceMargin decimal.Decimal // < InitMarginReq
	FeeMaker         decimal.Decimal // signed fraction of notional; negative = rebate
	FeeTaker         decimal.Decimal // signed fraction of notional
}

// Leverage is 1/InitMarginReq.
func (s Specification[Q]) Leverage() decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(s.InitMarginReq, currency.DefaultScale)
}

// Validate checks the margin-requirement and fee invariants spec.md §3
// requires of a contract specification.
func (s Specification[Q]) Validate() error {
	zero := decimal.Zero
	one := decimal.NewFromInt(1)
	if s.InitMarginReq.LessThanOrEqual(zero) || s.InitMarginReq.GreaterThan(one) {
		return fmt.Errorf("contracts: init_margin_req %s must be in (0, 1]", s.InitMarginReq)
	}
	if s.MaintenanceMargin.GreaterThanOrEqual(s.InitMarginReq) || s.MaintenanceMargin.LessThanOrEqual(zero) {
		return fmt.Errorf("contracts: maintenance_margin %s must be in (0, init_margin_req)", s.MaintenanceMargin)
	}
	return nil
}
