package amount

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals int32
		want     string
	}{
		{"whole", "12", 6, "12000000"},
		{"cents", "12.50", 6, "12500000"},
		{"floors extra digits", "12.3456789", 6, "12345678"},
		{"below one unit", "0.0000001", 6, "0"},
		{"ether", "0.05", 18, "50000000000000000"},
		{"zero", "0", 6, "0"},
		{"padded", " 1.5 ", 2, "150"},
		{"exponent", "1.5e3", 6, "1500000000"},
		{"tiny exponent", "1e-5000000", 6, "0"},
		{"uint256 max", maxUint256, 0, maxUint256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSmallestUnit(tt.value, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

func TestToSmallestUnitRejectsOversizedAmounts(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals int32
	}{
		{"uint256 max plus one", "115792089237316195423570985008687907853269984665640564039457584007913129639936", 0},
		{"uint256 max scaled", maxUint256, 6},
		{"73 digits of USDC", "2" + strings.Repeat("0", 72), 6},
		{"huge exponent", "1e2000000000", 6},
		{"large exponent", "1e5000000", 6},
		{"long input", "1." + strings.Repeat("0", 200), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToSmallestUnit(tt.value, tt.decimals)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}
}

func TestToSmallestUnitRejectsBadInput(t *testing.T) {
	for _, value := range []string{"", "abc", "-1", "1.2.3"} {
		_, err := ToSmallestUnit(value, 6)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, value)
	}

	_, err := ToSmallestUnit("1", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestFromSmallestUnit(t *testing.T) {
	assert.Equal(t, "12.5", FromSmallestUnit(big.NewInt(12_500_000), 6))
	assert.Equal(t, "0.05", FromSmallestUnit(big.NewInt(5e16), 18))
	assert.Equal(t, "0", FromSmallestUnit(nil, 6))
}
