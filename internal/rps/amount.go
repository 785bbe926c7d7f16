package rps

import (
	"math"

	"github.com/pkg/errors"
)

// MaxAmount is the largest bet, balance or wallet movement the engine
// handles. Stores keep amounts in signed 64-bit fields.
const MaxAmount uint64 = math.MaxInt64

// MaxBet keeps the pot of a game within MaxAmount.
const MaxBet = MaxAmount / 2

// CheckAmount fails with ErrAmountOverflow when v is above MaxAmount.
func CheckAmount(v uint64) error {
	if v > MaxAmount {
		return errors.Wrapf(ErrAmountOverflow, "%d", v)
	}
	return nil
}

// AddAmount returns a+b, or ErrAmountOverflow when the sum passes MaxAmount.
func AddAmount(a, b uint64) (uint64, error) {
	if a > MaxAmount || b > MaxAmount-a {
		return 0, errors.Wrapf(ErrAmountOverflow, "%d + %d", a, b)
	}
	return a + b, nil
}
