package account

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"futures-sim/pkg/currency"
	"futures-sim/pkg/types"
)

func TestRecordFillAccumulatesVolumeBySide(t *testing.T) {
	t.Parallel()

	tr := New[currency.Base, currency.Quote]()
	tr.RecordFill(Fill[currency.Base, currency.Quote]{Side: types.Buy, Quantity: currency.NewFromInt[currency.Base](5)})
	tr.RecordFill(Fill[currency.Base, currency.Quote]{Side: types.Sell, Quantity: currency.NewFromInt[currency.Base](2)})

	assert.Equal(t, 2, tr.NumTrades())
	assert.True(t, tr.TotalVolumeBuy().Equal(currency.NewFromInt[currency.Base](5)))
	assert.True(t, tr.TotalVolumeSell().Equal(currency.NewFromInt[currency.Base](2)))
}

func TestRecordFillOnlyCountsWinLossWhenPnLIsNonzero(t *testing.T) {
	t.Parallel()

	tr := New[currency.Base, currency.Quote]()
	tr.RecordFill(Fill[currency.Base, currency.Quote]{Side: types.Buy}) // opening fill, no PnL
	assert.True(t, tr.WinRate().IsZero())

	tr.RecordFill(Fill[currency.Base, currency.Quote]{Side: types.Sell, RealizedPnL: currency.NewFromInt[currency.Quote](10)})
	tr.RecordFill(Fill[currency.Base, currency.Quote]{Side: types.Sell, RealizedPnL: currency.NewFromInt[currency.Quote](-10)})

	assert.True(t, tr.RealizedPnL().IsZero())
	assert.Equal(t, "0.5", tr.WinRate().String())
}
