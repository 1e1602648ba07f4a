// Package xerrors holds the engine's error taxonomy. The core's rejection,
// lookup, amend and market-update errors are these sentinel values, wrapped
// with context via fmt.Errorf's %w so callers can still errors.Is/errors.As
// against the sentinel while getting a human-readable message. A few
// precondition errors (a non-positive margin reservation, an out-of-range
// fill quantity, an invalid contract specification) are plain fmt.Errorf
// values with no sentinel.
package xerrors

import "errors"

// OrderError values: rejection at order construction or submission.
var (
	ErrLimitPriceLTEZero    = errors.New("order: limit price must be greater than zero")
	ErrOrderQuantityLTEZero = errors.New("order: quantity must be greater than zero")
	ErrLimitPriceAboveAsk   = errors.New("order: buy limit price crosses the ask")
	ErrLimitPriceBelowBid   = errors.New("order: sell limit price crosses the bid")
	ErrLimitPriceOutOfFilter = errors.New("order: limit price outside the price filter")
	ErrQuantityOutOfFilter   = errors.New("order: quantity outside the quantity filter")
	ErrInvalidTickSize       = errors.New("order: limit price not aligned to tick size")
	ErrMaxActiveOrders       = errors.New("order: maximum active orders per side reached")
)

// RiskError values.
var (
	ErrNotEnoughAvailableBalance = errors.New("risk: not enough available balance")
	ErrLiquidate                 = errors.New("risk: position breached maintenance margin, forced close")
)

// LookupError values.
var (
	ErrOrderIDNotFound     = errors.New("lookup: order id not found")
	ErrUserOrderIDNotFound = errors.New("lookup: user order id not found")
)

// AmendError values.
var (
	ErrAmendQtyAlreadyFilled = errors.New("amend: order already filled for the requested quantity")
)

// MarketUpdateError values.
var (
	ErrPriceOutOfFilter = errors.New("market update: price outside the price filter")
	ErrPriceNotOnTick   = errors.New("market update: price not aligned to tick size")
	ErrBidAboveAsk      = errors.New("market update: bid above ask")
	ErrNoQuoteYet       = errors.New("market update: no quote observed yet")
)
