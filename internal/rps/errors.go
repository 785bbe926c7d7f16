package rps

import "github.com/pkg/errors"

// Domain errors. Every one of them is raised before any write, so a
// rejected call leaves games, balances and wallets untouched.
var (
	ErrNotFound           = errors.New("game not found")
	ErrUnauthorizedCaller = errors.New("caller is not allowed to act on this game")
	ErrInvalidState       = errors.New("operation not allowed in current game state")
	ErrBetMismatch        = errors.New("bet does not match the game bet")
	ErrInvalidBet         = errors.New("bet must be greater than zero and at most the maximum bet")
	ErrInvalidOpponent    = errors.New("opponent must be another account")
	ErrAlreadyCommitted   = errors.New("move already committed")
	ErrAlreadyRevealed    = errors.New("move already revealed")
	ErrInvalidMove        = errors.New("invalid move")
	ErrInvalidCommitment  = errors.New("commitment must not be empty")
	ErrCommitmentMismatch = errors.New("move and secret do not match commitment")
	ErrNoFunds            = errors.New("no funds to withdraw")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTimeoutDisabled    = errors.New("timeouts are disabled")
	ErrTimeoutNotReached  = errors.New("timeout not reached")
	ErrAmountOverflow     = errors.New("amount exceeds the supported range")
)

// IsDomainError reports whether err is one of the caller-correctable errors above.
func IsDomainError(err error) bool {
	for _, e := range domainErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

var domainErrors = []error{
	ErrNotFound, ErrUnauthorizedCaller, ErrInvalidState, ErrBetMismatch, ErrInvalidBet,
	ErrInvalidOpponent, ErrAlreadyCommitted, ErrAlreadyRevealed, ErrInvalidMove,
	ErrInvalidCommitment, ErrCommitmentMismatch, ErrNoFunds, ErrInsufficientFunds,
	ErrTimeoutDisabled, ErrTimeoutNotReached, ErrAmountOverflow,
}
