package rps

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Move is a hand sign. The numeric values match the original contract
// encoding so commitments computed by existing clients stay valid.
type Move uint8

const (
	None     Move = 0 // no move revealed yet
	Rock     Move = 1
	Paper    Move = 2
	Scissors Move = 3
)

// Valid reports whether m is one of Rock, Paper or Scissors.
func (m Move) Valid() bool { return m == Rock || m == Paper || m == Scissors }

// Beats reports whether m wins against other.
func (m Move) Beats(other Move) bool {
	switch m {
	case Rock:
		return other == Scissors
	case Scissors:
		return other == Paper
	case Paper:
		return other == Rock
	}
	return false
}

func (m Move) String() string {
	switch m {
	case None:
		return "none"
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	}
	return "move(" + strconv.Itoa(int(m)) + ")"
}

// ParseMove accepts a move name ("rock") or its number ("1").
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "rock":
		return Rock, nil
	case "paper":
		return Paper, nil
	case "scissors":
		return Scissors, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !Move(n).Valid() {
		return None, errors.Wrapf(ErrInvalidMove, "%q", s)
	}
	return Move(n), nil
}

// UnmarshalJSON accepts either a number or a move name.
func (m *Move) UnmarshalJSON(b []byte) error {
	var n uint8
	if err := json.Unmarshal(b, &n); err == nil {
		*m = Move(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(ErrInvalidMove, "move must be a number or a name")
	}
	parsed, err := ParseMove(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
