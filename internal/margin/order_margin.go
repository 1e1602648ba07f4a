package margin

import (
	"github.com/shopspring/decimal"

	"futures-sim/pkg/currency"
)

// PositionSide tells OrderMargin which side of the book the open position
// offsets, without margin needing to import the position package (which
// itself imports margin for PositionView).
type PositionSide int

const (
	PositionNeutral PositionSide = iota
	PositionLong
	PositionShort
)

// PositionView is the minimal slice of position state the order-margin
// function needs: its direction and its notional value at entry price.
type PositionView[M currency.Unit] struct {
	Side     PositionSide
	Notional currency.Money[M]
}

// OrderMargin is the pure function at the center of the core (spec.md
// §4.2): given the total notional of resting buys, the total notional of
// resting sells, the open position, and the init-margin requirement, it
// returns the margin that must be held aside to collateralize all resting
// orders net of the position's offsetting exposure.
//
// A resting order on the same side as the position adds exposure; one on
// the opposite side offsets the position up to its notional. Margin must
// cover the worse of the two sides after offsetting, since only one
// direction can be realized before the position flips.
func OrderMargin[M currency.Unit](buyNotional, sellNotional currency.Money[M], pos PositionView[M], initMarginReq decimal.Decimal) currency.Money[M] {
	switch pos.Side {
	case PositionLong:
		offset := currency.Min(pos.Notional, sellNotional)
		sellNotional = sellNotional.Sub(offset)
	case PositionShort:
		offset := currency.Min(pos.Notional, buyNotional)
		buyNotional = buyNotional.Sub(offset)
	}
	effective := currency.Max(buyNotional, sellNotional)
	return effective.MulFrac(initMarginReq)
}
