package keeper

import (
	stdmath "math"

	"cosmossdk.io/math"
)

// SettlementAmount is price * duration. The product of two uint64 values
// always fits in a math.Int, so it is exact and never saturates.
func SettlementAmount(price, duration uint64) math.Int {
	return math.NewIntFromUint64(price).Mul(math.NewIntFromUint64(duration))
}

// SaturatingAddUint64 adds b to a, sticking at MaxUint64 instead of wrapping.
func SaturatingAddUint64(a, b uint64) uint64 {
	if a > stdmath.MaxUint64-b {
		return stdmath.MaxUint64
	}
	return a + b
}

// ClampedAddInt64 adds delta to v without wrapping and clamps the result to
// [floor, ceiling].
func ClampedAddInt64(v, delta, floor, ceiling int64) int64 {
	var sum int64
	switch {
	case delta > 0 && v > stdmath.MaxInt64-delta:
		sum = stdmath.MaxInt64
	case delta < 0 && v < stdmath.MinInt64-delta:
		sum = stdmath.MinInt64
	default:
		sum = v + delta
	}

	if sum < floor {
		return floor
	}
	if sum > ceiling {
		return ceiling
	}
	return sum
}
