package marketstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-sim/internal/filters"
	"futures-sim/pkg/currency"
	"futures-sim/pkg/timeutil"
	"futures-sim/pkg/xerrors"
)

func qp(i int64) currency.Money[currency.Quote] { return currency.NewFromInt[currency.Quote](i) }

func newState() *State {
	return New(filters.PriceFilter{MinPrice: qp(0), MaxPrice: qp(1000000), TickSize: qp(0)})
}

func TestNoQuoteUntilFirstSetBidAsk(t *testing.T) {
	t.Parallel()

	s := newState()
	assert.False(t, s.HasQuote())

	require.NoError(t, s.ValidateBidAsk(qp(100), qp(101)))
	s.SetBidAsk(qp(100), qp(101), timeutil.TimestampNs(1))

	assert.True(t, s.HasQuote())
	assert.True(t, s.Bid().Equal(qp(100)))
	assert.True(t, s.Ask().Equal(qp(101)))
}

func TestValidateBidAskRejectsCrossedBook(t *testing.T) {
	t.Parallel()

	s := newState()
	err := s.ValidateBidAsk(qp(101), qp(100))
	assert.ErrorIs(t, err, xerrors.ErrBidAboveAsk)
}
