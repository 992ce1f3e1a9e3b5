package inventory

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrFloorBreach means zero fillable amount remains above the floor.
var ErrFloorBreach = errors.New("no fillable amount above floor")

// amountScale is the fixed-point scale for settled amounts. Outputs round
// down at this scale; clamped inputs round up just enough to hit the floor
// exactly.
const amountScale = 8

// Fill is the solver result. The conservation identity
// desired == AppliedAmountIn + Leftover holds for every fill.
type Fill struct {
	AmountOut       float64
	AppliedAmountIn float64
	Leftover        float64
	IsPartial       bool
}

// SolveFill computes the maximal input that can be filled without driving
// the paying reserve below its floor. feeBps is the final pipeline rate,
// price the reference mid in quote per base.
func SolveFill(desiredIn float64, isBaseIn bool, res ReserveState, floors Floors, price, feeBps float64) (Fill, error) {
	if desiredIn <= 0 || price <= 0 {
		return Fill{}, errors.New("solver: desiredIn and price must be > 0")
	}

	desired := decimal.NewFromFloat(desiredIn)
	px := decimal.NewFromFloat(price)
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(feeBps).Div(decimal.NewFromInt(10_000)))

	// outPerIn converts input units to output units after the fee.
	var outPerIn, reserveOut, floorOut decimal.Decimal
	if isBaseIn {
		outPerIn = px.Mul(keep)
		reserveOut = decimal.NewFromFloat(res.QuoteReserve)
		floorOut = decimal.NewFromFloat(floors.Quote)
	} else {
		outPerIn = keep.Div(px)
		reserveOut = decimal.NewFromFloat(res.BaseReserve)
		floorOut = decimal.NewFromFloat(floors.Base)
	}

	available := reserveOut.Sub(floorOut).RoundDown(amountScale)
	if available.Sign() <= 0 {
		return Fill{}, ErrFloorBreach
	}

	fullOut := desired.Mul(outPerIn).RoundDown(amountScale)
	if fullOut.LessThanOrEqual(available) {
		out, _ := fullOut.Float64()
		return Fill{AmountOut: out, AppliedAmountIn: desiredIn}, nil
	}

	// Clamp: pay out exactly down to the floor; charge the smallest input
	// that covers it.
	applied := available.Div(outPerIn).RoundUp(amountScale)
	if applied.GreaterThan(desired) {
		applied = desired
	}
	leftover := desired.Sub(applied)

	out, _ := available.Float64()
	appliedF, _ := applied.Float64()
	leftoverF, _ := leftover.Float64()
	return Fill{
		AmountOut:       out,
		AppliedAmountIn: appliedF,
		Leftover:        leftoverF,
		IsPartial:       true,
	}, nil
}

// ApplyFill settles a fill against the reserves. Callers invoke it only
// after every gate has passed; it never takes a reserve below zero.
func ApplyFill(res *ReserveState, f Fill, isBaseIn bool) {
	if isBaseIn {
		res.BaseReserve += f.AppliedAmountIn
		res.QuoteReserve -= f.AmountOut
	} else {
		res.QuoteReserve += f.AppliedAmountIn
		res.BaseReserve -= f.AmountOut
	}
}
