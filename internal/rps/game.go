package rps

import (
	"strconv"
	"time"
)

// Account identifies a participant. The engine treats it as opaque.
type Account string

// State is the lifecycle phase of a game.
type State uint8

const (
	WaitingForPlayer2 State = 0 // created, bet escrowed, opponent not joined
	Committing        State = 1 // both bets escrowed, collecting commitments
	Revealing         State = 2 // both committed, collecting reveals
	Finished          State = 3 // pot credited, terminal
)

func (s State) String() string {
	switch s {
	case WaitingForPlayer2:
		return "waiting_for_player2"
	case Committing:
		return "committing"
	case Revealing:
		return "revealing"
	case Finished:
		return "finished"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Outcome records how a finished game was settled.
type Outcome uint8

const (
	Pending        Outcome = 0
	Player1Wins    Outcome = 1
	Player2Wins    Outcome = 2
	Draw           Outcome = 3
	Player1Forfeit Outcome = 4 // player1 stalled, player2 took the pot
	Player2Forfeit Outcome = 5 // player2 stalled, player1 took the pot
	Cancelled      Outcome = 6 // nobody joined, bet refunded to player1
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Player1Wins:
		return "player1_wins"
	case Player2Wins:
		return "player2_wins"
	case Draw:
		return "draw"
	case Player1Forfeit:
		return "player1_forfeit"
	case Player2Forfeit:
		return "player2_forfeit"
	case Cancelled:
		return "cancelled"
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Game is one wager between two accounts.
type Game struct {
	ID         uint64     `json:"id"`
	Player1    Account    `json:"player1"`
	Player2    Account    `json:"player2"`
	Bet        uint64     `json:"bet"`
	State      State      `json:"state"`
	Commit1    Commitment `json:"commit1"`
	Commit2    Commitment `json:"commit2"`
	P1Move     Move       `json:"p1Move"`
	P2Move     Move       `json:"p2Move"`
	P1Revealed bool       `json:"p1Revealed"`
	P2Revealed bool       `json:"p2Revealed"`
	Outcome    Outcome    `json:"outcome"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// seat is a player's position in a game.
type seat uint8

const (
	noSeat seat = iota
	seat1
	seat2
)

func (g *Game) seatOf(a Account) seat {
	switch a {
	case g.Player1:
		return seat1
	case g.Player2:
		return seat2
	}
	return noSeat
}

// IsPlayer reports whether a plays in g.
func (g *Game) IsPlayer(a Account) bool { return g.seatOf(a) != noSeat }

func (g *Game) commitment(s seat) *Commitment {
	if s == seat1 {
		return &g.Commit1
	}
	return &g.Commit2
}

func (g *Game) revealed(s seat) bool {
	if s == seat1 {
		return g.P1Revealed
	}
	return g.P2Revealed
}

func (g *Game) setReveal(s seat, m Move) {
	if s == seat1 {
		g.P1Move, g.P1Revealed = m, true
		return
	}
	g.P2Move, g.P2Revealed = m, true
}

func (g *Game) player(s seat) Account {
	if s == seat1 {
		return g.Player1
	}
	return g.Player2
}

// Pot is the amount at stake once both players have joined.
func (g *Game) Pot() uint64 { return 2 * g.Bet }

// Winner returns the account that took the pot, or "" for draws,
// cancellations and unfinished games.
func (g *Game) Winner() Account {
	switch g.Outcome {
	case Player1Wins, Player2Forfeit:
		return g.Player1
	case Player2Wins, Player1Forfeit:
		return g.Player2
	}
	return ""
}

// Clone returns a copy that shares nothing with g.
func (g *Game) Clone() *Game {
	c := *g
	return &c
}
