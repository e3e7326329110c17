package models

import "github.com/shopspring/decimal"

// decimalCurrencyTolerance is the fraction of the expected amount a decimal
// currency may drift by before the payment is treated as tampered. Covers
// rounding differences introduced by providers quoting in minor units.
var decimalCurrencyTolerance = decimal.NewFromFloat(0.01)

// AmountMatches compares a paid amount against the expected amount under the
// currency's tolerance rule. Zero-decimal currencies (XAF) admit no drift at
// all: the remote network has no tolerance concept and any deviation is a
// fraud signal. Decimal currencies admit a 1% band. The two rules are
// intentionally separate constants and must not be unified.
func AmountMatches(expected, actual decimal.Decimal, currency Currency) bool {
	if !currency.HasFractionalUnit() {
		return expected.Equal(actual)
	}
	diff := expected.Sub(actual).Abs()
	return diff.LessThanOrEqual(expected.Mul(decimalCurrencyTolerance))
}

// WholeUnits rounds an amount half-up to the nearest whole currency unit for
// networks that reject fractional values.
func WholeUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}
