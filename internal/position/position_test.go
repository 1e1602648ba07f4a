package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"futures-sim/internal/futuresmath"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/types"
)

func q(i int64) currency.Money[currency.Quote] { return currency.NewFromInt[currency.Quote](i) }
func b(i int64) currency.Money[currency.Base]  { return currency.NewFromInt[currency.Base](i) }

func full() decimal.Decimal { return decimal.NewFromInt(1) }

// TestOpenLong matches seed scenario 1: a market buy of 5 against no prior
// position opens Long{5, 101} and requires 505 of new margin.
func TestOpenLong(t *testing.T) {
	t.Parallel()

	acc := New[currency.Base, currency.Quote](futuresmath.Linear{})
	res := acc.Change(b(5), q(101), types.Buy, full())

	assert.Equal(t, Long, acc.Direction())
	assert.True(t, acc.Quantity().Equal(b(5)))
	assert.True(t, acc.EntryPrice().Equal(q(101)))
	assert.True(t, res.MarginRequired.Equal(q(505)))
	assert.True(t, res.RealizedPnL.IsZero())
	assert.True(t, res.MarginReleased.IsZero())
}

func TestSameDirectionAddAveragesEntry(t *testing.T) {
	t.Parallel()

	acc := New[currency.Base, currency.Quote](futuresmath.Linear{})
	acc.Change(b(5), q(100), types.Buy, full())
	acc.Change(b(5), q(120), types.Buy, full())

	assert.True(t, acc.Quantity().Equal(b(10)))
	assert.True(t, acc.EntryPrice().Equal(q(110)))
}

func TestPartialReduceRealizesProportionalPnLAndKeepsEntry(t *testing.T) {
	t.Parallel()

	acc := New[currency.Base, currency.Quote](futuresmath.Linear{})
	acc.Change(b(10), q(100), types.Buy, full())

	res := acc.Change(b(4), q(110), types.Sell, full())

	assert.Equal(t, Long, acc.Direction())
	assert.True(t, acc.Quantity().Equal(b(6)))
	assert.True(t, acc.EntryPrice().Equal(q(100)))
	assert.True(t, res.RealizedPnL.Equal(q(40))) // 4*(110-100)
	assert.True(t, res.MarginReleased.Equal(q(400))) // 4/10 of the 1000 notional
}

func TestExactReduceClosesPosition(t *testing.T) {
	t.Parallel()

	acc := New[currency.Base, currency.Quote](futuresmath.Linear{})
	acc.Change(b(5), q(100), types.Buy, full())

	res := acc.Change(b(5), q(90), types.Sell, full())

	assert.Equal(t, Neutral, acc.Direction())
	assert.True(t, acc.Quantity().IsZero())
	assert.True(t, res.RealizedPnL.Equal(q(-50))) // 5*(90-100)
	assert.True(t, res.MarginReleased.Equal(q(500)))
	assert.True(t, res.MarginRequired.IsZero())
}

func TestOverFillClosesAndFlips(t *testing.T) {
	t.Parallel()

	acc := New[currency.Base, currency.Quote](futuresmath.Linear{})
	acc.Change(b(5), q(100), types.Buy, full())

	res := acc.Change(b(8), q(90), types.Sell, full())

	assert.Equal(t, Short, acc.Direction())
	assert.True(t, acc.Quantity().Equal(b(3)))
	assert.True(t, acc.EntryPrice().Equal(q(90)))
	assert.True(t, res.RealizedPnL.Equal(q(-50))) // closed 5 at (90-100)
	assert.True(t, res.MarginReleased.Equal(q(500)))
	assert.True(t, res.MarginRequired.Equal(q(270))) // new 3 @ 90
}

func TestShortPnLSignIsNegatedFromLong(t *testing.T) {
	t.Parallel()

	acc := New[currency.Base, currency.Quote](futuresmath.Linear{})
	acc.Change(b(5), q(100), types.Sell, full())

	res := acc.Change(b(5), q(90), types.Buy, full())

	assert.Equal(t, Neutral, acc.Direction())
	assert.True(t, res.RealizedPnL.Equal(q(50))) // short profits as price falls
}

// TestInverseWorkedExample matches the spec's inverse-futures scenario:
// a 500-quote long entered at 100 exits at 200 for a realized 2.5 base.
func TestInverseWorkedExample(t *testing.T) {
	t.Parallel()

	acc := New[currency.Quote, currency.Base](futuresmath.Inverse{})
	acc.Change(currency.NewFromInt[currency.Quote](500), q(100), types.Buy, full())

	res := acc.Change(currency.NewFromInt[currency.Quote](500), q(200), types.Sell, full())

	want, _ := currency.NewFromString[currency.Base]("2.5")
	assert.True(t, res.RealizedPnL.Equal(want))
}

func TestDirectionForSide(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Long, DirectionForSide(types.Buy))
	assert.Equal(t, Short, DirectionForSide(types.Sell))
}
