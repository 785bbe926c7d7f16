package models

import (
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet journal entry types.
const (
	TTypeDeposit    = "deposit"
	TTypeBet        = "bet"
	TTypeWithdrawal = "withdrawal"
)

// Balance is one row of the wallet journal. Dr adds to the account's
// available funds, Cr takes from them.
type Balance struct {
	ID        int64           `json:"id"`
	Account   string          `json:"account"`
	TType     string          `json:"ttype"`
	Dr        decimal.Decimal `json:"dr"`
	Cr        decimal.Decimal `json:"cr"`
	TRef      string          `json:"tref"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// amounts are kept in minor units by the engine and in major units
// (two decimals) in the journal

func ToMajor(minor uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(minor), -2)
}

// ToMinor clamps to the uint64 range.
func ToMinor(major decimal.Decimal) uint64 {
	if major.IsNegative() {
		return 0
	}
	n := major.Shift(2).BigInt()
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}
