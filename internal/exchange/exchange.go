// Package exchange assembles book, position, margin, risk, and market
// state into the single-instrument matching/margining facade the rest of
// the engine is driven through: submit/cancel/amend orders, and feed
// market updates that fill resting orders and check for liquidation.
// Grounded on original_source's exchange/mod.rs, adapted from the
// teacher's internal/exchange (previously a blockchain-signed REST/WS
// client, deleted — the package name and the "one facade owns all
// mutation" shape survive, the networking doesn't).
package exchange

import (
	"fmt"

	"futures-sim/internal/account"
	"futures-sim/internal/book"
	"futures-sim/internal/contracts"
	"futures-sim/internal/futuresmath"
	"futures-sim/internal/margin"
	"futures-sim/internal/marketstate"
	"futures-sim/internal/orderstate"
	"futures-sim/internal/position"
	"futures-sim/internal/risk"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/marketupdate"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/types"
	"futures-sim/pkg/xerrors"
)

// Config describes the one instrument an Exchange trades and the account
// it opens with.
type Config[Q currency.Unit, M currency.Unit] struct {
	StartingBalance       currency.Money[M]
	MaxActiveOrdersPerSide int
	ContractSpec           contracts.Specification[Q]
}

// Exchange owns the book, position, balances, market state, risk engine,
// and account tracker for one instrument, and is the only thing allowed
// to mutate any of them.
type Exchange[Q currency.Unit, M currency.Unit] struct {
	math futuresmath.Math[Q, M]
	spec contracts.Specification[Q]

	book    *book.ActiveOrders[Q, M]
	pos     *position.Account[Q, M]
	bal     *margin.Balances[M]
	ms      *marketstate.State
	risk    *risk.Engine[Q, M]
	tracker *account.Tracker[Q, M]
	ids     timeutil.OrderIDGenerator
}

// New builds an exchange for math over cfg's contract specification and
// starting balance.
func New[Q currency.Unit, M currency.Unit](math futuresmath.Math[Q, M], cfg Config[Q, M]) (*Exchange[Q, M], error) {
	if err := cfg.ContractSpec.Validate(); err != nil {
		return nil, err
	}
	return &Exchange[Q, M]{
		math:    math,
		spec:    cfg.ContractSpec,
		book:    book.New(math, cfg.MaxActiveOrdersPerSide),
		pos:     position.New(math),
		bal:     margin.NewBalances(cfg.StartingBalance),
		ms:      marketstate.New(cfg.ContractSpec.PriceFilter),
		risk:    risk.New(math, cfg.ContractSpec),
		tracker: account.New[Q, M](),
	}, nil
}

// NewLinear builds a base-quantity, quote-margined exchange.
func NewLinear(cfg Config[currency.Base, currency.Quote]) (*Exchange[currency.Base, currency.Quote], error) {
	return New[currency.Base, currency.Quote](futuresmath.Linear{}, cfg)
}

// NewInverse builds a quote-quantity, base-margined exchange.
func NewInverse(cfg Config[currency.Quote, currency.Base]) (*Exchange[currency.Quote, currency.Base], error) {
	return New[currency.Quote, currency.Base](futuresmath.Inverse{}, cfg)
}

func (e *Exchange[Q, M]) Position() *position.Account[Q, M]     { return e.pos }
func (e *Exchange[Q, M]) Balances() *margin.Balances[M]          { return e.bal }
func (e *Exchange[Q, M]) MarketState() *marketstate.State        { return e.ms }
func (e *Exchange[Q, M]) ActiveLimitOrders() *book.ActiveOrders[Q, M] { return e.book }
func (e *Exchange[Q, M]) AccountTracker() *account.Tracker[Q, M] { return e.tracker }
func (e *Exchange[Q, M]) ContractSpec() contracts.Specification[Q] { return e.spec }

// ---------------------------------------------------------------------
// Market orders
// ---------------------------------------------------------------------

// SubmitMarketOrder validates, risk-checks, and immediately executes a
// market order against the current top of book, settling the fill into
// position and balances and recording it with the account tracker.
func (e *Exchange[Q, M]) SubmitMarketOrder(o orderstate.NewMarketOrder[Q], ts timeutil.TimestampNs) (orderstate.FilledMarketOrder[Q], error) {
	var zero orderstate.FilledMarketOrder[Q]

	if !e.ms.HasQuote() {
		return zero, fmt.Errorf("exchange: submit_market_order: %w", xerrors.ErrNoQuoteYet)
	}
	if err := e.spec.QuantityFilter.Validate(o.Quantity()); err != nil {
		return zero, fmt.Errorf("exchange: submit_market_order: %w", err)
	}

	fillPrice := e.ms.Ask()
	if o.Side() == types.Sell {
		fillPrice = e.ms.Bid()
	}

	marginIncrement, fee, err := e.risk.CheckMarketOrder(o.Side(), o.Quantity(), fillPrice, e.pos, e.bal)
	if err != nil {
		return zero, fmt.Errorf("exchange: submit_market_order: %w", err)
	}

	if err := e.settleFill(o.Side(), o.Quantity(), fillPrice, marginIncrement, fee, false); err != nil {
		return zero, fmt.Errorf("exchange: submit_market_order: %w", err)
	}

	meta := orderstate.Meta{OrderID: e.ids.Next(), TsExchangeReceivedNs: ts}
	return o.IntoFilled(meta, ts, fillPrice), nil
}

// settleFill is the one place a fill's balances/position/tracker effects
// are applied, used by both market-order execution and resting-order
// fills from market updates. marginIncrement is reserved into order_margin
// immediately before Position.Change consumes it via fill_order — the
// transient reservation is how a market fill (which never rests) still
// routes its new exposure margin through the ledger's only
// order_margin->position_margin operation.
func (e *Exchange[Q, M]) settleFill(side types.Side, qty currency.Money[Q], fillPrice currency.Money[currency.Quote], marginIncrement, fee currency.Money[M], isMaker bool) error {
	if marginIncrement.IsPositive() {
		if err := e.bal.TryReserveOrderMargin(marginIncrement); err != nil {
			return err
		}
	}

	res := e.pos.Change(qty, fillPrice, side, e.spec.InitMarginReq)

	if res.MarginReleased.IsPositive() {
		e.bal.FreePositionMargin(res.MarginReleased)
	}
	if !res.RealizedPnL.IsZero() {
		e.bal.ApplyPnL(res.RealizedPnL)
	}
	if res.MarginRequired.IsPositive() {
		e.bal.FillOrder(res.MarginRequired)
	}
	if fee.IsPositive() || fee.IsNegative() {
		e.bal.AccountForFee(fee)
	}

	e.tracker.RecordFill(account.Fill[Q, M]{
		Side:        side,
		Quantity:    qty,
		Price:       fillPrice,
		RealizedPnL: res.RealizedPnL,
		IsMaker:     isMaker,
	})
	return nil
}

// ---------------------------------------------------------------------
// Limit orders
// ---------------------------------------------------------------------

// SubmitLimitOrder validates, applies the order's re-pricing policy if it
// would cross the current market, risk-checks the resulting order-margin
// delta, and rests it on the book.
func (e *Exchange[Q, M]) SubmitLimitOrder(o orderstate.NewLimitOrder[Q], ts timeutil.TimestampNs) (orderstate.PendingLimitOrder[Q], error) {
	var zero orderstate.PendingLimitOrder[Q]

	if err := e.spec.PriceFilter.Validate(o.LimitPrice()); err != nil {
		return zero, fmt.Errorf("exchange: submit_limit_order: %w", err)
	}
	if err := e.spec.QuantityFilter.Validate(o.Quantity()); err != nil {
		return zero, fmt.Errorf("exchange: submit_limit_order: %w", err)
	}

	o, err := e.repriceIfCrossing(o)
	if err != nil {
		return zero, fmt.Errorf("exchange: submit_limit_order: %w", err)
	}

	delta, err := e.risk.CheckLimitOrder(o, e.book, e.pos, e.bal)
	if err != nil {
		return zero, fmt.Errorf("exchange: submit_limit_order: %w", err)
	}

	meta := orderstate.Meta{OrderID: e.ids.Next(), TsExchangeReceivedNs: ts}
	pending := o.IntoPending(meta)
	if err := e.book.TryInsert(pending); err != nil {
		return zero, fmt.Errorf("exchange: submit_limit_order: %w", err)
	}
	if delta.IsPositive() {
		if err := e.bal.TryReserveOrderMargin(delta); err != nil {
			// Shouldn't happen: risk check above already compared delta
			// against available. Unwind the insert so book and balances
			// stay consistent.
			e.book.RemoveByOrderID(meta.OrderID)
			return zero, fmt.Errorf("exchange: submit_limit_order: %w", err)
		}
	}
	return pending, nil
}

// repriceIfCrossing applies o's RePricingPolicy if its limit price would
// immediately cross the current market: RePricingNone rejects, RePricingSlide
// walks the price back to the current best non-crossing level.
func (e *Exchange[Q, M]) repriceIfCrossing(o orderstate.NewLimitOrder[Q]) (orderstate.NewLimitOrder[Q], error) {
	if !e.ms.HasQuote() {
		return o, nil
	}
	switch o.Side() {
	case types.Buy:
		if o.LimitPrice().LessThan(e.ms.Ask()) {
			return o, nil
		}
		if o.RePricing() == types.RePricingSlide {
			return o.WithLimitPrice(e.ms.Bid()), nil
		}
		return o, xerrors.ErrLimitPriceAboveAsk
	default:
		if o.LimitPrice().GreaterThan(e.ms.Bid()) {
			return o, nil
		}
		if o.RePricing() == types.RePricingSlide {
			return o.WithLimitPrice(e.ms.Ask()), nil
		}
		return o, xerrors.ErrLimitPriceBelowBid
	}
}

// CancelLimitOrder removes a resting order by exchange order id and frees
// its reserved order margin.
func (e *Exchange[Q, M]) CancelLimitOrder(id timeutil.OrderID) (orderstate.PendingLimitOrder[Q], error) {
	removed, err := e.book.RemoveByOrderID(id)
	if err != nil {
		return removed, fmt.Errorf("exchange: cancel_limit_order: %w", err)
	}
	e.reconcileOrderMargin()
	return removed, nil
}

// CancelOrderByUserID removes a resting order by its caller-supplied
// correlation id.
func (e *Exchange[Q, M]) CancelOrderByUserID(userOrderID uint64) (orderstate.PendingLimitOrder[Q], error) {
	removed, err := e.book.RemoveByUserOrderID(userOrderID)
	if err != nil {
		return removed, fmt.Errorf("exchange: cancel_order_by_user_id: %w", err)
	}
	e.reconcileOrderMargin()
	return removed, nil
}

// reconcileOrderMargin frees whatever the ledger's order_margin holds in
// excess of what the book's current resting notional (net of the current
// position) requires — used any time a resting order's size or the
// position it nets against changes without a corresponding ledger call:
// cancellation, amendment, and resting fills all shrink the book without
// touching order_margin directly.
func (e *Exchange[Q, M]) reconcileOrderMargin() {
	required := e.book.OrderMargin(e.pos.View(), e.spec.InitMarginReq)
	freed := e.bal.OrderMargin().Sub(required)
	if freed.IsPositive() {
		e.bal.FreeOrderMargin(freed)
	}
}

// AmendLimitOrder cancels the order at id and resubmits it at newQty,
// rejecting if newQty is not strictly greater than what has already
// filled (spec.md's amend contract: an amend can only add remaining
// size, never claw back a fill).
func (e *Exchange[Q, M]) AmendLimitOrder(id timeutil.OrderID, newQty currency.Money[Q], ts timeutil.TimestampNs) (orderstate.PendingLimitOrder[Q], error) {
	var zero orderstate.PendingLimitOrder[Q]
	existing, err := e.book.RemoveByOrderID(id)
	if err != nil {
		return zero, fmt.Errorf("exchange: amend_limit_order: %w", err)
	}
	filled := existing.Progress().CumulativeQty()
	if newQty.LessThanOrEqual(filled) {
		// Put the order back before rejecting — an invalid amend must not
		// cancel the order as a side effect.
		_ = e.book.TryInsert(existing)
		return zero, fmt.Errorf("exchange: amend_limit_order: %w", xerrors.ErrAmendQtyAlreadyFilled)
	}
	e.reconcileOrderMargin()

	fresh, err := orderstate.NewLimit(existing.Side(), existing.LimitPrice(), newQty)
	if err != nil {
		return zero, fmt.Errorf("exchange: amend_limit_order: %w", err)
	}
	if uoid, has := existing.UserOrderID(); has {
		fresh, err = orderstate.NewLimitWithUserOrderID(existing.Side(), existing.LimitPrice(), newQty, uoid)
		if err != nil {
			return zero, fmt.Errorf("exchange: amend_limit_order: %w", err)
		}
	}
	fresh = fresh.WithRePricing(existing.RePricing())
	return e.SubmitLimitOrder(fresh, ts)
}

// ---------------------------------------------------------------------
// Market updates
// ---------------------------------------------------------------------

// LimitOrderUpdateKind distinguishes a partial resting fill from a fill
// that fully executed and left the book.
type LimitOrderUpdateKind int

const (
	PartiallyFilled LimitOrderUpdateKind = iota
	FullyFilled
)

// LimitOrderUpdate reports one resting order's fill outcome from a single
// UpdateState call.
type LimitOrderUpdate[Q currency.Unit] struct {
	Kind    LimitOrderUpdateKind
	Partial orderstate.PendingLimitOrder[Q] // valid iff Kind == PartiallyFilled
	Filled  orderstate.FilledLimitOrder[Q]  // valid iff Kind == FullyFilled
}

// UpdateState feeds one market event through the exchange: it validates
// the event, applies any top-of-book refresh, repeatedly fills the best
// resting order on each side while the event still has crossing volume,
// settles every fill into position/balances/tracker, and finally checks
// maintenance margin, force-closing the position if it has breached.
func (e *Exchange[Q, M]) UpdateState(u marketupdate.Update[Q]) ([]LimitOrderUpdate[Q], error) {
	if err := u.Validate(e.ms); err != nil {
		return nil, fmt.Errorf("exchange: update_state: %w", err)
	}
	u.ApplyToMarketState(e.ms)

	var updates []LimitOrderUpdate[Q]
	for _, side := range []types.Side{types.Buy, types.Sell} {
		consumed := currency.Zero[Q]()
		for {
			best, ok := e.book.PeekBest(side)
			if !ok {
				break
			}
			fillQty, ok := u.LimitOrderFilled(best, consumed)
			if !ok || fillQty.LessThanOrEqual(currency.Zero[Q]()) {
				break
			}
			outcome, ok := e.book.FillBest(side, fillQty, best.LimitPrice(), u.TimestampExchangeNs())
			if !ok {
				break
			}
			consumed = consumed.Add(fillQty)
			// Fills execute at the resting order's own limit price, never
			// the event's print price — the order is the maker here.
			fee := e.math.Notional(fillQty, best.LimitPrice()).MulFrac(e.spec.FeeMaker)
			if err := e.settleFill(side, fillQty, best.LimitPrice(), currency.Zero[M](), fee, true); err != nil {
				return updates, fmt.Errorf("exchange: update_state: %w", err)
			}
			e.reconcileOrderMargin()
			if outcome.FullyFilled {
				updates = append(updates, LimitOrderUpdate[Q]{Kind: FullyFilled, Filled: outcome.Filled})
				continue
			}
			updates = append(updates, LimitOrderUpdate[Q]{Kind: PartiallyFilled, Partial: outcome.Updated})
		}
	}

	if err := e.risk.CheckMaintenanceMargin(e.ms, e.pos); err != nil {
		e.forceLiquidate()
		return updates, fmt.Errorf("exchange: update_state: %w", err)
	}
	return updates, nil
}

// forceLiquidate closes the entire position at the current mark (best
// bid for a long, best ask for a short) once maintenance margin is
// breached. The realized PnL, margin release, and taker fee flow through
// the same settleFill path a reducing fill would take.
func (e *Exchange[Q, M]) forceLiquidate() {
	qty := e.pos.Quantity()
	if qty.IsZero() {
		return
	}
	closingSide := types.Sell
	markPrice := e.ms.Bid()
	if e.pos.Direction() == position.Short {
		closingSide = types.Buy
		markPrice = e.ms.Ask()
	}
	fee := e.math.Notional(qty, markPrice).MulFrac(e.spec.FeeTaker)
	// With no margin increment to reserve, settleFill cannot fail.
	_ = e.settleFill(closingSide, qty, markPrice, currency.Zero[M](), fee, false)
}
