// Package amount converts between human decimal amounts and token base units.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

const (
	// maxInputLen bounds the textual amount accepted from callers.
	maxInputLen = 128
	// maxUnitDigits is the digit count of the largest uint256.
	maxUnitDigits = 78
	maxUnitBits   = 256
)

// ToSmallestUnit converts a decimal string such as "12.50" into base units of
// a token with the given decimals. Digits beyond the token precision are
// floored, never rounded up.
func ToSmallestUnit(value string, decimals int32) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty amount", domain.ErrInvalidAmount)
	}
	if len(value) > maxInputLen {
		return nil, fmt.Errorf("%w: amount longer than %d characters", domain.ErrInvalidAmount, maxInputLen)
	}
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", domain.ErrInvalidAmount, decimals)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, value)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", domain.ErrInvalidAmount, value)
	}

	// Size the result from the exponent before scaling, so a huge exponent
	// is rejected without computing the power of ten.
	coefficient := d.Coefficient()
	if coefficient.Sign() == 0 {
		return new(big.Int), nil
	}
	intDigits := int64(len(coefficient.String())) + int64(d.Exponent()) + int64(decimals)
	if intDigits <= 0 {
		return new(big.Int), nil
	}
	if intDigits > maxUnitDigits {
		return nil, fmt.Errorf("%w: %q exceeds uint256", domain.ErrInvalidAmount, value)
	}

	units := d.Shift(decimals).Floor().BigInt()
	if units.BitLen() > maxUnitBits {
		return nil, fmt.Errorf("%w: %q exceeds uint256", domain.ErrInvalidAmount, value)
	}
	return units, nil
}

// FromSmallestUnit renders base units as a decimal string.
func FromSmallestUnit(units *big.Int, decimals int32) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -decimals).String()
}
