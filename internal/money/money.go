// Package money defines the fixed-point amount representation shared by the
// ledger and the payment gateway edge. Amounts carry two fractional digits
// (the NGN minor unit); the gateway wire uses integer kobo.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FractionalDigits is the number of minor-unit digits carried by every amount.
const FractionalDigits = 2

// Zero is the additive identity amount.
var Zero = decimal.Zero

// FromKobo converts an integer kobo amount into a decimal naira amount.
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -FractionalDigits)
}

// ToKobo converts a naira amount into integer kobo. The amount must already
// be exact to two digits; callers validate with Parse or IsValid first.
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Shift(FractionalDigits).IntPart()
}

// Parse converts a decimal string into an amount, rejecting anything that
// cannot be represented exactly in kobo. There is no rounding path: drift is
// an error, never a correction.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !IsValid(d) {
		return decimal.Decimal{}, fmt.Errorf("amount %q exceeds %d fractional digits", s, FractionalDigits)
	}
	return d, nil
}

// IsValid reports whether the amount is exact to the currency's minor unit.
func IsValid(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(FractionalDigits))
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.IsPositive()
}

// String formats the amount with exactly two fractional digits.
func String(amount decimal.Decimal) string {
	return amount.StringFixed(FractionalDigits)
}
