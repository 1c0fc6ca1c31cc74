package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerToken is the conversion factor between display amounts
// and the integer minor units carried on the wire.
const MinorUnitsPerToken = 1_000_000_000

// AmountDecimals is the number of fractional digits a display amount
// can carry without precision loss.
const AmountDecimals = 9

// ToMinorUnits converts a major-unit display amount to integer minor
// units. Amounts with more precision than the token supports, negative
// amounts, and amounts that overflow int64 are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", amount)
	}

	minor := amount.Mul(decimal.NewFromInt(MinorUnitsPerToken))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, AmountDecimals)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units", amount)
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts integer minor units to a major-unit display
// amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(MinorUnitsPerToken))
}
