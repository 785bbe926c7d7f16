package models

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorMajorConversion(t *testing.T) {
	assert.Equal(t, "12.34", ToMajor(1234).StringFixed(2))
	assert.Equal(t, "0.01", ToMajor(1).StringFixed(2))
	assert.Equal(t, uint64(1234), ToMinor(decimal.RequireFromString("12.34")))
	assert.Equal(t, uint64(0), ToMinor(decimal.RequireFromString("-5")))
	assert.Equal(t, uint64(987654321), ToMinor(ToMajor(987654321)))
}

func TestConversionAboveInt64(t *testing.T) {
	assert.Equal(t, "92233720368547758.08", ToMajor(1<<63).StringFixed(2))
	assert.Equal(t, "184467440737095516.15", ToMajor(math.MaxUint64).StringFixed(2))
	assert.True(t, ToMajor(math.MaxUint64).IsPositive())
	assert.Equal(t, uint64(math.MaxUint64), ToMinor(ToMajor(math.MaxUint64)))
	assert.Equal(t, uint64(math.MaxUint64), ToMinor(decimal.RequireFromString("1e30")))
}
