// Package amount converts between base units and decimal display strings.
package amount

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders v base units with the given number of decimals, trimming
// trailing zeros: Format(1500000, 6) is "1.5".
func Format(v uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -int32(decimals)).String()
}

// Parse converts a decimal display string into base units. More fractional
// digits than decimals, negative values and values above uint64 are
// rejected.
func Parse(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("amount: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount: %s is negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount: %s has more than %d decimal places", s, decimals)
	}
	if scaled.GreaterThan(decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)) {
		return 0, fmt.Errorf("amount: %s overflows", s)
	}
	return scaled.BigInt().Uint64(), nil
}
