package rps

import "context"

// Store owns the durable engine state: the game registry, the withdrawable
// balance ledger and access to the wallet holding caller funds.
//
// Atomic runs fn inside one transaction. If fn returns an error none of its
// writes become visible.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	// NextGameID allocates the next sequential id, starting at 0.
	NextGameID() (uint64, error)
	// Game returns a copy of the game or ErrNotFound.
	Game(id uint64) (*Game, error)
	PutGame(g *Game) error
	// Balance returns the withdrawable amount, zero for unknown accounts.
	Balance(a Account) (uint64, error)
	SetBalance(a Account, amount uint64) error
	// CreditBalance adds amount to the withdrawable balance in one step,
	// failing with ErrAmountOverflow past MaxAmount.
	CreditBalance(a Account, amount uint64) error
	Wallet() Wallet
}

// Wallet moves value in and out of the engine's custody. Ref names the
// movement (for example "game:3:bet") so backends can keep a journal.
type Wallet interface {
	// Debit takes amount out of a's available funds, failing with
	// ErrInsufficientFunds when they do not cover it.
	Debit(a Account, amount uint64, ref string) error
	// Credit hands amount over to a.
	Credit(a Account, amount uint64, ref string) error
}
