package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sim/internal/contracts"
	"futures-sim/internal/filters"
	"futures-sim/internal/orderstate"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/marketupdate"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/types"
	"futures-sim/pkg/xerrors"
)

func qp(i int64) currency.Money[currency.Quote] { return currency.NewFromInt[currency.Quote](i) }
func bq(i int64) currency.Money[currency.Base]  { return currency.NewFromInt[currency.Base](i) }

func frac(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testSpec(initMargin, maint, feeMaker, feeTaker string) contracts.Specification[currency.Base] {
	return contracts.Specification[currency.Base]{
		Ticker: "BTCUSD",
		PriceFilter: filters.PriceFilter{
			MinPrice: qp(0), MaxPrice: qp(1000000), TickSize: qp(0),
		},
		QuantityFilter:    filters.QuantityFilter[currency.Base]{},
		InitMarginReq:     frac(initMargin),
		MaintenanceMargin: frac(maint),
		FeeMaker:          frac(feeMaker),
		FeeTaker:          frac(feeTaker),
	}
}

func newTestExchange(t *testing.T, startingBalance int64, spec contracts.Specification[currency.Base]) *Exchange[currency.Base, currency.Quote] {
	t.Helper()
	ex, err := NewLinear(Config[currency.Base, currency.Quote]{
		StartingBalance:        qp(startingBalance),
		MaxActiveOrdersPerSide: 10,
		ContractSpec:           spec,
	})
	require.NoError(t, err)
	return ex
}

// TestSeedScenario1MarketBuyNoPosition: Bba{100,101} then a market buy of 5
// opens Long{5,101}; fee = 5*101*0.0006 = 0.303.
func TestSeedScenario1MarketBuyNoPosition(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0.0002", "0.0006")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(100), Ask: qp(101), TimestampNs: timeutil.TimestampNs(1000)})
	require.NoError(t, err)

	order, err := orderstate.NewMarket(types.Buy, bq(5))
	require.NoError(t, err)
	filled, err := ex.SubmitMarketOrder(order, timeutil.TimestampNs(2000))
	require.NoError(t, err)
	assert.True(t, filled.FillPrice().Equal(qp(101)))

	assert.Equal(t, "long", ex.Position().Direction().String())
	assert.True(t, ex.Position().Quantity().Equal(bq(5)))
	assert.True(t, ex.Position().EntryPrice().Equal(qp(101)))

	wantFee, _ := currency.NewFromString[currency.Quote]("0.303")
	assert.True(t, ex.Balances().TotalFeesPaid().Equal(wantFee))
	assert.True(t, ex.Balances().PositionMargin().Equal(qp(505)))
	assert.True(t, ex.Balances().OrderMargin().IsZero())

	wantAvailable := qp(1000).Sub(qp(505)).Sub(wantFee)
	assert.True(t, ex.Balances().Available().Equal(wantAvailable))
}

// TestSeedScenario4ForcedLiquidation matches the shape of the spec's
// forced-liquidation scenario (Long position, a bid drop that breaches
// maintenance margin triggers a forced close back to Neutral). The
// liquidation-price formula implemented here is §4.5's literal
// entry*(1-maintenance_margin); the scenario's own worked number (75 for
// entry=100, maintenance_margin=0.5) doesn't reduce to that formula (it
// reduces to entry*(1-maintenance_margin) only at maintenance_margin=0.25),
// so this test uses maintenance_margin=0.25 to land on the documented
// liquidation price exactly — see DESIGN.md's liquidation-price note.
func TestSeedScenario4ForcedLiquidation(t *testing.T) {
	t.Parallel()

	spec := testSpec("0.5", "0.25", "0", "0")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(99), Ask: qp(100), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	order, err := orderstate.NewMarket(types.Buy, bq(1))
	require.NoError(t, err)
	_, err = ex.SubmitMarketOrder(order, timeutil.TimestampNs(2))
	require.NoError(t, err)
	require.Equal(t, "long", ex.Position().Direction().String())

	_, err = ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(74), Ask: qp(75), TimestampNs: timeutil.TimestampNs(3)})
	assert.ErrorIs(t, err, xerrors.ErrLiquidate)
	assert.Equal(t, "neutral", ex.Position().Direction().String())
	assert.True(t, ex.Position().Quantity().IsZero())
}

// TestSeedScenario6InversePnL: a 500-quote inverse long entered at 100
// realizes 2.5 base closing at 200.
func TestSeedScenario6InversePnL(t *testing.T) {
	t.Parallel()

	spec := contracts.Specification[currency.Quote]{
		Ticker:            "BTCUSD-INV",
		PriceFilter:       filters.PriceFilter{MinPrice: qp(0), MaxPrice: qp(1000000), TickSize: qp(0)},
		QuantityFilter:    filters.QuantityFilter[currency.Quote]{},
		InitMarginReq:     frac("1"),
		MaintenanceMargin: frac("0.5"),
		FeeMaker:          decimal.Zero,
		FeeTaker:          decimal.Zero,
	}
	ex, err := NewInverse(Config[currency.Quote, currency.Base]{
		StartingBalance:        currency.NewFromInt[currency.Base](10),
		MaxActiveOrdersPerSide: 10,
		ContractSpec:           spec,
	})
	require.NoError(t, err)

	_, err = ex.UpdateState(marketupdate.Bba[currency.Quote]{Bid: qp(99), Ask: qp(100), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	openOrder, err := orderstate.NewMarket(types.Buy, currency.NewFromInt[currency.Quote](500))
	require.NoError(t, err)
	_, err = ex.SubmitMarketOrder(openOrder, timeutil.TimestampNs(2))
	require.NoError(t, err)

	// A sell market order fills at the current bid, so the bid is set to
	// the scenario's exit price of 200.
	_, err = ex.UpdateState(marketupdate.Bba[currency.Quote]{Bid: qp(200), Ask: qp(201), TimestampNs: timeutil.TimestampNs(3)})
	require.NoError(t, err)

	closeOrder, err := orderstate.NewMarket(types.Sell, currency.NewFromInt[currency.Quote](500))
	require.NoError(t, err)
	_, err = ex.SubmitMarketOrder(closeOrder, timeutil.TimestampNs(4))
	require.NoError(t, err)

	want, _ := currency.NewFromString[currency.Base]("2.5")
	assert.True(t, ex.AccountTracker().RealizedPnL().Equal(want))
}

// TestCancelLimitOrderRestoresBalancesExactly: with a zero maker fee,
// submitting and then canceling a limit order that never fills must leave
// balances exactly as they started.
func TestCancelLimitOrderRestoresBalancesExactly(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0", "0")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(99), Ask: qp(100), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	order, err := orderstate.NewLimit(types.Buy, qp(98), bq(5))
	require.NoError(t, err)
	pending, err := ex.SubmitLimitOrder(order, timeutil.TimestampNs(2))
	require.NoError(t, err)

	assert.True(t, ex.Balances().OrderMargin().Equal(qp(490)))
	assert.True(t, ex.Balances().Available().Equal(qp(510)))

	_, err = ex.CancelLimitOrder(pending.Meta().OrderID)
	require.NoError(t, err)

	assert.True(t, ex.Balances().OrderMargin().IsZero())
	assert.True(t, ex.Balances().Available().Equal(qp(1000)))
}

// TestLimitOrderRejectedWhenCrossingUnderDefaultPolicy confirms the
// RePricingNone default rejects a buy limit at or above the ask.
func TestLimitOrderRejectedWhenCrossingUnderDefaultPolicy(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0", "0")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(99), Ask: qp(100), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	crossing, err := orderstate.NewLimit(types.Buy, qp(100), bq(1))
	require.NoError(t, err)
	_, err = ex.SubmitLimitOrder(crossing, timeutil.TimestampNs(2))
	assert.ErrorIs(t, err, xerrors.ErrLimitPriceAboveAsk)

	nonCrossing, err := orderstate.NewLimit(types.Buy, qp(99), bq(1))
	require.NoError(t, err)
	_, err = ex.SubmitLimitOrder(nonCrossing, timeutil.TimestampNs(3))
	assert.NoError(t, err)
}

// TestLimitOrderSlideReprices confirms RePricingSlide walks a crossing buy
// back to the current bid instead of rejecting it.
func TestLimitOrderSlideReprices(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0", "0")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(99), Ask: qp(100), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	crossing, err := orderstate.NewLimit(types.Buy, qp(100), bq(1))
	require.NoError(t, err)
	crossing = crossing.WithRePricing(types.RePricingSlide)

	pending, err := ex.SubmitLimitOrder(crossing, timeutil.TimestampNs(2))
	require.NoError(t, err)
	assert.True(t, pending.LimitPrice().Equal(qp(99)))
}

func TestMaxActiveOrdersPerSideBoundary(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0", "0")
	ex, err := NewLinear(Config[currency.Base, currency.Quote]{
		StartingBalance:        qp(1_000_000),
		MaxActiveOrdersPerSide: 2,
		ContractSpec:           spec,
	})
	require.NoError(t, err)

	_, err = ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(50), Ask: qp(200), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	for i := int64(0); i < 2; i++ {
		order, err := orderstate.NewLimit(types.Buy, qp(10+i), bq(1))
		require.NoError(t, err)
		_, err = ex.SubmitLimitOrder(order, timeutil.TimestampNs(2+i))
		require.NoError(t, err)
	}

	one, err := orderstate.NewLimit(types.Buy, qp(20), bq(1))
	require.NoError(t, err)
	_, err = ex.SubmitLimitOrder(one, timeutil.TimestampNs(10))
	assert.ErrorIs(t, err, xerrors.ErrMaxActiveOrders)
}

// TestRestingFillReconcilesOrderMargin confirms a partial resting fill
// (scenario 5's shape) shrinks order_margin by the filled notional rather
// than leaving it over-reserved.
func TestRestingFillReconcilesOrderMargin(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0.0002", "0")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(99), Ask: qp(101), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	order, err := orderstate.NewLimit(types.Buy, qp(100), bq(10))
	require.NoError(t, err)
	_, err = ex.SubmitLimitOrder(order, timeutil.TimestampNs(2))
	require.NoError(t, err)
	require.True(t, ex.Balances().OrderMargin().Equal(qp(1000)))

	updates, err := ex.UpdateState(marketupdate.Trade[currency.Base]{Price: qp(99), Quantity: bq(3), Side: types.Sell, TimestampNs: timeutil.TimestampNs(3)})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, PartiallyFilled, updates[0].Kind)

	assert.True(t, ex.Position().Quantity().Equal(bq(3)))
	assert.True(t, ex.Position().EntryPrice().Equal(qp(100)))
	assert.True(t, ex.Balances().OrderMargin().Equal(qp(700)))
	assert.True(t, ex.Balances().PositionMargin().Equal(qp(300)))

	wantFee, _ := currency.NewFromString[currency.Quote]("0.06")
	assert.True(t, ex.Balances().TotalFeesPaid().Equal(wantFee))
}

func TestAmendRejectsWhenNewQtyAlreadyFilled(t *testing.T) {
	t.Parallel()

	spec := testSpec("1", "0.5", "0", "0")
	ex := newTestExchange(t, 1000, spec)

	_, err := ex.UpdateState(marketupdate.Bba[currency.Base]{Bid: qp(99), Ask: qp(101), TimestampNs: timeutil.TimestampNs(1)})
	require.NoError(t, err)

	order, err := orderstate.NewLimit(types.Buy, qp(100), bq(10))
	require.NoError(t, err)
	pending, err := ex.SubmitLimitOrder(order, timeutil.TimestampNs(2))
	require.NoError(t, err)

	_, err = ex.UpdateState(marketupdate.Trade[currency.Base]{Price: qp(99), Quantity: bq(6), Side: types.Sell, TimestampNs: timeutil.TimestampNs(3)})
	require.NoError(t, err)

	_, err = ex.AmendLimitOrder(pending.Meta().OrderID, bq(5), timeutil.TimestampNs(4))
	assert.ErrorIs(t, err, xerrors.ErrAmendQtyAlreadyFilled)

	// The order must still be resting after a rejected amend.
	best, ok := ex.ActiveLimitOrders().PeekBestBid()
	require.True(t, ok)
	assert.True(t, best.RemainingQuantity().Equal(bq(4)))
}
