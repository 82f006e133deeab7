// Package moneymath supplies the rounding behavior shopspring/decimal does
// not: half-even ("banker's") division, required wherever the health-factor
// math divides one USD total by another.
package moneymath

import "github.com/shopspring/decimal"

// DefaultScale is the fractional-digit precision the position reader rounds
// every division result to.
const DefaultScale = 18

// DivHalfEven divides a by b and rounds the quotient to scale fractional
// digits using half-even rounding. decimal.Decimal's own DivRound rounds
// half-away-from-zero, so exact ties here resolve to the nearest even digit
// instead. The tie decision is made on the exact division remainder, never
// on an already-rounded intermediate.
func DivHalfEven(a, b decimal.Decimal, scale int32) decimal.Decimal {
	q, r := a.QuoRem(b, scale)
	unit := decimal.New(1, -scale)
	twiceRemainder := r.Abs().Mul(decimal.New(2, 0))
	divisorUnit := b.Abs().Mul(unit)
	sign := a.Sign() * b.Sign()

	switch twiceRemainder.Cmp(divisorUnit) {
	case -1:
		return q
	case 1:
		return stepAwayFromZero(q, unit, sign)
	default:
		if lastDigitEven(q, scale) {
			return q
		}
		return stepAwayFromZero(q, unit, sign)
	}
}

// RoundHalfEven rounds d to the given number of fractional digits using
// round-half-to-even. Ties are detected exactly, since the half-way value
// at a given scale (5 * 10^-(scale+1)) is always exactly representable.
func RoundHalfEven(d decimal.Decimal, scale int32) decimal.Decimal {
	truncated := d.Truncate(scale)
	remainder := d.Sub(truncated).Abs()
	unit := decimal.New(1, -scale)
	half := decimal.New(5, -(scale + 1))

	switch remainder.Cmp(half) {
	case -1:
		return truncated
	case 1:
		return stepAwayFromZero(truncated, unit, d.Sign())
	default:
		if lastDigitEven(truncated, scale) {
			return truncated
		}
		return stepAwayFromZero(truncated, unit, d.Sign())
	}
}

func stepAwayFromZero(truncated, unit decimal.Decimal, sign int) decimal.Decimal {
	if sign >= 0 {
		return truncated.Add(unit)
	}
	return truncated.Sub(unit)
}

// lastDigitEven reports whether the fractional digit at position scale of d
// is even, i.e. whether d * 10^scale is an even integer.
func lastDigitEven(d decimal.Decimal, scale int32) bool {
	shifted := d.Shift(scale)
	return shifted.Mod(decimal.New(2, 0)).IsZero()
}
