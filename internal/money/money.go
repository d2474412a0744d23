// Package money provides fixed-point monetary helpers used by all posting
// paths. Amounts are shopspring decimals; rounding to the currency minor unit
// is banker's rounding (round half to even) and happens only at the defined
// points (line totals, journal amounts), never on intermediate percentages.
package money

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	// Zero is the canonical zero amount.
	Zero = decimal.Zero
)

// Round2 rounds an amount to two decimals using round-half-even.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(2)
}

// Cents returns the amount as integer minor units after Round2. Balance
// checks compare cents to avoid any representational drift.
func Cents(v decimal.Decimal) int64 {
	return Round2(v).Mul(hundred).IntPart()
}

// Equal reports whether two amounts are equal at minor-unit precision.
func Equal(a, b decimal.Decimal) bool {
	return Cents(a) == Cents(b)
}

// FromPercent converts a percentage figure (e.g. 16 for 16%) to its ratio.
func FromPercent(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// LineTotal computes qty*unitCost*(1-discount%)*(1+taxRate%) rounded to two
// decimals. Intermediate factors stay unrounded.
func LineTotal(qty, unitCost, discountPct, taxPct decimal.Decimal) decimal.Decimal {
	subtotal := qty.Mul(unitCost).Mul(decimal.NewFromInt(1).Sub(FromPercent(discountPct)))
	return Round2(subtotal.Mul(decimal.NewFromInt(1).Add(FromPercent(taxPct))))
}

// LineSubtotal computes qty*unitCost*(1-discount%) rounded to two decimals.
func LineSubtotal(qty, unitCost, discountPct decimal.Decimal) decimal.Decimal {
	return Round2(qty.Mul(unitCost).Mul(decimal.NewFromInt(1).Sub(FromPercent(discountPct))))
}

// LineTax computes the tax portion of a line rounded to two decimals.
func LineTax(qty, unitCost, discountPct, taxPct decimal.Decimal) decimal.Decimal {
	subtotal := qty.Mul(unitCost).Mul(decimal.NewFromInt(1).Sub(FromPercent(discountPct)))
	return Round2(subtotal.Mul(FromPercent(taxPct)))
}

// IsNegative reports whether the amount is below zero.
func IsNegative(v decimal.Decimal) bool {
	return v.Sign() < 0
}

// IsPositive reports whether the amount is above zero.
func IsPositive(v decimal.Decimal) bool {
	return v.Sign() > 0
}
