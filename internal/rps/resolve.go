package rps

// Resolve maps two revealed moves to an outcome using the beats relation.
func Resolve(p1, p2 Move) Outcome {
	switch {
	case p1 == p2:
		return Draw
	case p1.Beats(p2):
		return Player1Wins
	default:
		return Player2Wins
	}
}

// Credit is one ledger increment produced by settling a game.
type Credit struct {
	Account Account
	Amount  uint64
}

// Payouts lists the ledger credits a finished game is owed. The amounts
// always add up to what was escrowed: the pot once player2 joined, the
// single bet for a cancelled game.
func Payouts(g *Game) []Credit {
	switch g.Outcome {
	case Player1Wins, Player2Forfeit:
		return []Credit{{g.Player1, g.Pot()}}
	case Player2Wins, Player1Forfeit:
		return []Credit{{g.Player2, g.Pot()}}
	case Draw:
		return []Credit{{g.Player1, g.Bet}, {g.Player2, g.Bet}}
	case Cancelled:
		return []Credit{{g.Player1, g.Bet}}
	}
	return nil
}

// settle applies the payouts of g to the pull-payment ledger.
func settle(tx Tx, g *Game) error {
	for _, c := range Payouts(g) {
		if err := tx.CreditBalance(c.Account, c.Amount); err != nil {
			return err
		}
	}
	return nil
}
