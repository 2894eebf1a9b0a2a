package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c int64
		want    int64
	}{
		{"exact", 1000, 2, 4, 500},
		{"round half up", 5, 1, 2, 3},
		{"round down", 4, 1, 3, 1},
		{"negative rounds away from zero", -5, 1, 2, -3},
		{"large values do not overflow", 9_000_000_000_000, 15_000_000_000, 1_000_000, 135_000_000_000_000_000},
		{"zero divisor", 10, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mulDiv(tt.a, tt.b, tt.c))
		})
	}
}

func TestApplyBasisPoints(t *testing.T) {
	assert.Equal(t, int64(1900), applyBasisPoints(10_000, 1900))
	assert.Equal(t, int64(2), applyBasisPoints(9, 2500))  // 2.25 -> 2
	assert.Equal(t, int64(3), applyBasisPoints(10, 2500)) // 2.5 -> 3
}

func TestConvertMinor(t *testing.T) {
	// 1 USD = 0.92 EUR
	assert.Equal(t, int64(920), convertMinor(1000, 1_000_000, 920_000, 2, 2))
	// 10.00 USD -> JPY (0 位小数), 1 USD = 151.5 JPY
	assert.Equal(t, int64(1515), convertMinor(1000, 1_000_000, 151_500_000, 2, 0))
	// 1515 JPY -> USD
	assert.Equal(t, int64(1000), convertMinor(1515, 151_500_000, 1_000_000, 0, 2))
	assert.Equal(t, int64(0), convertMinor(1000, 0, 1, 2, 2))
}
