package orderstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sim/pkg/currency"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/types"
	"futures-sim/pkg/xerrors"
)

func qp(i int64) currency.Money[currency.Quote] { return currency.NewFromInt[currency.Quote](i) }
func bq(i int64) currency.Money[currency.Base]  { return currency.NewFromInt[currency.Base](i) }

func TestNewLimitRejectsNonPositivePriceOrQuantity(t *testing.T) {
	t.Parallel()

	_, err := NewLimit(types.Buy, qp(0), bq(5))
	assert.ErrorIs(t, err, xerrors.ErrLimitPriceLTEZero)

	_, err = NewLimit(types.Buy, qp(100), bq(0))
	assert.ErrorIs(t, err, xerrors.ErrOrderQuantityLTEZero)
}

func TestLimitOrderFillProgressAccumulatesWeightedAverage(t *testing.T) {
	t.Parallel()

	o, err := NewLimit(types.Buy, qp(100), bq(10))
	require.NoError(t, err)
	pending := o.IntoPending(Meta{OrderID: 1})

	pending, fullyFilled, err := pending.WithFill(bq(3), qp(99))
	require.NoError(t, err)
	assert.False(t, fullyFilled)
	assert.True(t, pending.RemainingQuantity().Equal(bq(7)))
	assert.True(t, pending.Progress().AvgPrice().Equal(qp(99)))

	pending, fullyFilled, err = pending.WithFill(bq(7), qp(101))
	require.NoError(t, err)
	assert.True(t, fullyFilled)
	assert.True(t, pending.RemainingQuantity().IsZero())

	// weighted avg: (3*99 + 7*101) / 10 = 100.4
	want, _ := currency.NewFromString[currency.Quote]("100.4")
	assert.True(t, pending.Progress().AvgPrice().Equal(want))
}

func TestWithFillRejectsOverfill(t *testing.T) {
	t.Parallel()

	o, err := NewLimit(types.Sell, qp(100), bq(5))
	require.NoError(t, err)
	pending := o.IntoPending(Meta{OrderID: 1})

	_, _, err = pending.WithFill(bq(6), qp(100))
	assert.Error(t, err)
}

func TestIntoFilledCarriesAverageFillPrice(t *testing.T) {
	t.Parallel()

	o, err := NewLimit(types.Buy, qp(100), bq(5))
	require.NoError(t, err)
	pending := o.IntoPending(Meta{OrderID: 1})

	pending, fullyFilled, err := pending.WithFill(bq(5), qp(98))
	require.NoError(t, err)
	require.True(t, fullyFilled)

	filled := pending.IntoFilled(timeutil.TimestampNs(5))
	assert.True(t, filled.FillPrice().Equal(qp(98)))
	assert.True(t, filled.FilledQuantity().Equal(bq(5)))
}

func TestNewMarketRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	_, err := NewMarket[currency.Base](types.Buy, bq(0))
	assert.ErrorIs(t, err, xerrors.ErrOrderQuantityLTEZero)
}

func TestMarketOrderIntoFilled(t *testing.T) {
	t.Parallel()

	o, err := NewMarket(types.Buy, bq(5))
	require.NoError(t, err)

	filled := o.IntoFilled(Meta{OrderID: 7}, timeutil.TimestampNs(10), qp(101))
	assert.Equal(t, timeutil.OrderID(7), filled.Meta().OrderID)
	assert.True(t, filled.FillPrice().Equal(qp(101)))
	assert.True(t, filled.FilledQuantity().Equal(bq(5)))
}
