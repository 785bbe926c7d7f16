package service

import (
	"encoding/json"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/pkg/errors"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{rps.ErrNotFound, "not_found"},
	{rps.ErrUnauthorizedCaller, "unauthorized_caller"},
	{rps.ErrInvalidState, "invalid_state"},
	{rps.ErrBetMismatch, "bet_mismatch"},
	{rps.ErrInvalidBet, "invalid_bet"},
	{rps.ErrInvalidOpponent, "invalid_opponent"},
	{rps.ErrAlreadyCommitted, "already_committed"},
	{rps.ErrAlreadyRevealed, "already_revealed"},
	{rps.ErrInvalidMove, "invalid_move"},
	{rps.ErrInvalidCommitment, "invalid_commitment"},
	{rps.ErrCommitmentMismatch, "commitment_mismatch"},
	{rps.ErrNoFunds, "no_funds"},
	{rps.ErrInsufficientFunds, "insufficient_funds"},
	{rps.ErrTimeoutDisabled, "timeout_disabled"},
	{rps.ErrTimeoutNotReached, "timeout_not_reached"},
	{rps.ErrAmountOverflow, "amount_overflow"},
}

// ErrBadRequest marks malformed input that never reached the engine.
var ErrBadRequest = errors.New("bad request")

// ErrorCode maps an error to its stable wire code. Errors outside the
// domain map to "internal".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	if errors.Is(err, ErrBadRequest) {
		return "bad_request"
	}
	return "internal"
}

// ErrorMessage hides non domain errors from clients.
func ErrorMessage(err error) string {
	if rps.IsDomainError(err) || errors.Is(err, ErrBadRequest) {
		return err.Error()
	}
	return "internal error"
}

// Result wraps data or err into the envelope sent back over the broker.
func Result(data interface{}, err error) comm.Result {
	if err != nil {
		return comm.Result{Status: false, Code: ErrorCode(err), Error: ErrorMessage(err)}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return comm.Result{Status: false, Code: "internal", Error: "internal error"}
	}
	return comm.Result{Status: true, Data: raw}
}
