package rps

import "time"

// Guards validate one operation against the current game without touching
// it. Checks run in the order NotFound (done by the caller), caller role,
// phase, then operation-specific arguments.

func guardJoin(g *Game, caller Account, bet uint64) error {
	if caller != g.Player2 {
		return ErrUnauthorizedCaller
	}
	if g.State != WaitingForPlayer2 {
		return ErrInvalidState
	}
	if bet != g.Bet {
		return ErrBetMismatch
	}
	return nil
}

func guardCommit(g *Game, caller Account) (seat, error) {
	s := g.seatOf(caller)
	if s == noSeat {
		return noSeat, ErrUnauthorizedCaller
	}
	if g.State != Committing {
		return noSeat, ErrInvalidState
	}
	if !g.commitment(s).IsZero() {
		return noSeat, ErrAlreadyCommitted
	}
	return s, nil
}

func guardReveal(g *Game, caller Account, m Move, secret Secret) (seat, error) {
	s := g.seatOf(caller)
	if s == noSeat {
		return noSeat, ErrUnauthorizedCaller
	}
	if g.State != Revealing {
		return noSeat, ErrInvalidState
	}
	if g.revealed(s) {
		return noSeat, ErrAlreadyRevealed
	}
	if !m.Valid() {
		return noSeat, ErrInvalidMove
	}
	if !g.commitment(s).Verify(m, secret) {
		return noSeat, ErrCommitmentMismatch
	}
	return s, nil
}

// guardTimeout decides who may end a stalled game and how it settles.
func guardTimeout(g *Game, caller Account, now time.Time, timeout time.Duration) (Outcome, error) {
	s := g.seatOf(caller)
	if s == noSeat {
		return Pending, ErrUnauthorizedCaller
	}
	if g.State == Finished {
		return Pending, ErrInvalidState
	}
	if !now.After(g.UpdatedAt.Add(timeout)) {
		return Pending, ErrTimeoutNotReached
	}

	var acted1, acted2 bool
	switch g.State {
	case WaitingForPlayer2:
		if s != seat1 {
			return Pending, ErrUnauthorizedCaller
		}
		return Cancelled, nil
	case Committing:
		acted1, acted2 = !g.Commit1.IsZero(), !g.Commit2.IsZero()
	case Revealing:
		acted1, acted2 = g.P1Revealed, g.P2Revealed
	}

	switch {
	case !acted1 && !acted2:
		return Draw, nil
	case acted1 && s == seat1:
		return Player2Forfeit, nil
	case acted2 && s == seat2:
		return Player1Forfeit, nil
	}
	return Pending, ErrUnauthorizedCaller
}
