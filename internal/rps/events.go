package rps

import "time"

// EventType names a committed state transition.
type EventType string

const (
	EventGameCreated      EventType = "game-created"
	EventGameJoined       EventType = "game-joined"
	EventMoveCommitted    EventType = "move-committed"
	EventMoveRevealed     EventType = "move-revealed"
	EventGameFinished     EventType = "game-finished"
	EventGameTimedOut     EventType = "game-timed-out"
	EventBalanceWithdrawn EventType = "balance-withdrawn"
)

// Event is emitted after the transaction that produced it has committed.
type Event struct {
	Type    EventType `json:"type"`
	GameID  uint64    `json:"gameId"`
	Account Account   `json:"account,omitempty"`
	Amount  uint64    `json:"amount,omitempty"`
	State   State     `json:"state"`
	Outcome Outcome   `json:"outcome"`
	Winner  Account   `json:"winner,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives committed events.
type Notifier interface {
	Notify(e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(e Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
