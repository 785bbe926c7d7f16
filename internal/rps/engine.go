package rps

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// ActionTimeout enables ClaimTimeout when positive.
	ActionTimeout time.Duration
	Notifier      Notifier
	Now           func() time.Time
	Logger        *log.Entry
}

// Engine is the game/escrow state machine. All mutations go through one
// store transaction each and are serialized by the engine.
type Engine struct {
	mu       sync.Mutex
	store    Store
	notifier Notifier
	now      func() time.Time
	timeout  time.Duration
	log      *log.Entry
}

func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:    store,
		notifier: opts.Notifier,
		now:      opts.Now,
		timeout:  opts.ActionTimeout,
		log:      opts.Logger,
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = log.WithField("component", "rps-engine")
	}
	return e
}

// mutate runs fn in a store transaction and dispatches the events it
// recorded once the transaction has committed.
func (e *Engine) mutate(ctx context.Context, fn func(tx Tx, now time.Time, emit func(Event)) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	var events []Event
	err := e.store.Atomic(ctx, func(tx Tx) error {
		events = events[:0]
		return fn(tx, now, func(ev Event) {
			ev.At = now
			events = append(events, ev)
		})
	})
	if err != nil {
		return err
	}
	for _, ev := range events {
		e.notifier.Notify(ev)
	}
	return nil
}

// CreateGame opens a game against opponent, escrowing bet from caller.
func (e *Engine) CreateGame(ctx context.Context, caller, opponent Account, bet uint64) (uint64, error) {
	if bet == 0 || bet > MaxBet {
		return 0, ErrInvalidBet
	}
	if opponent == "" || opponent == caller {
		return 0, ErrInvalidOpponent
	}

	var id uint64
	err := e.mutate(ctx, func(tx Tx, now time.Time, emit func(Event)) error {
		var err error
		if id, err = tx.NextGameID(); err != nil {
			return err
		}
		if err := tx.Wallet().Debit(caller, bet, betRef(id, caller)); err != nil {
			return err
		}
		g := &Game{
			ID:        id,
			Player1:   caller,
			Player2:   opponent,
			Bet:       bet,
			State:     WaitingForPlayer2,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.PutGame(g); err != nil {
			return err
		}
		emit(Event{Type: EventGameCreated, GameID: id, Account: caller, Amount: bet, State: g.State})
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.WithFields(log.Fields{"game": id, "player1": caller, "player2": opponent, "bet": bet}).Info("game created")
	return id, nil
}

// JoinGame lets the invited opponent match the bet.
func (e *Engine) JoinGame(ctx context.Context, caller Account, id uint64, bet uint64) error {
	err := e.mutate(ctx, func(tx Tx, now time.Time, emit func(Event)) error {
		g, err := tx.Game(id)
		if err != nil {
			return err
		}
		if err := guardJoin(g, caller, bet); err != nil {
			return err
		}
		if err := tx.Wallet().Debit(caller, bet, betRef(id, caller)); err != nil {
			return err
		}
		g.State = Committing
		g.UpdatedAt = now
		if err := tx.PutGame(g); err != nil {
			return err
		}
		emit(Event{Type: EventGameJoined, GameID: id, Account: caller, Amount: bet, State: g.State})
		return nil
	})
	if err != nil {
		return err
	}
	e.log.WithFields(log.Fields{"game": id, "player2": caller}).Info("game joined")
	return nil
}

// CommitMove stores the caller's commitment.
func (e *Engine) CommitMove(ctx context.Context, caller Account, id uint64, c Commitment) error {
	if c.IsZero() {
		return ErrInvalidCommitment
	}
	return e.mutate(ctx, func(tx Tx, now time.Time, emit func(Event)) error {
		g, err := tx.Game(id)
		if err != nil {
			return err
		}
		s, err := guardCommit(g, caller)
		if err != nil {
			return err
		}
		*g.commitment(s) = c
		if !g.Commit1.IsZero() && !g.Commit2.IsZero() {
			g.State = Revealing
		}
		g.UpdatedAt = now
		if err := tx.PutGame(g); err != nil {
			return err
		}
		emit(Event{Type: EventMoveCommitted, GameID: id, Account: caller, State: g.State})
		return nil
	})
}

// RevealMove opens the caller's commitment. The second reveal resolves the
// game and credits the pot to the ledger in the same transaction.
func (e *Engine) RevealMove(ctx context.Context, caller Account, id uint64, m Move, secret Secret) error {
	var finished *Game
	err := e.mutate(ctx, func(tx Tx, now time.Time, emit func(Event)) error {
		g, err := tx.Game(id)
		if err != nil {
			return err
		}
		s, err := guardReveal(g, caller, m, secret)
		if err != nil {
			return err
		}
		g.setReveal(s, m)
		g.UpdatedAt = now
		emit(Event{Type: EventMoveRevealed, GameID: id, Account: caller, State: g.State})

		if g.P1Revealed && g.P2Revealed {
			if err := finish(tx, g, Resolve(g.P1Move, g.P2Move), emit); err != nil {
				return err
			}
			finished = g
		}
		return tx.PutGame(g)
	})
	if err != nil {
		return err
	}
	if finished != nil {
		e.log.WithFields(log.Fields{
			"game": id, "p1Move": finished.P1Move, "p2Move": finished.P2Move, "outcome": finished.Outcome,
		}).Info("game finished")
	}
	return nil
}

// ClaimTimeout settles a game whose counterparty stopped acting. It is only
// available when the engine was configured with an ActionTimeout.
func (e *Engine) ClaimTimeout(ctx context.Context, caller Account, id uint64) error {
	if e.timeout <= 0 {
		return ErrTimeoutDisabled
	}
	var outcome Outcome
	err := e.mutate(ctx, func(tx Tx, now time.Time, emit func(Event)) error {
		g, err := tx.Game(id)
		if err != nil {
			return err
		}
		if outcome, err = guardTimeout(g, caller, now, e.timeout); err != nil {
			return err
		}
		g.UpdatedAt = now
		emit(Event{Type: EventGameTimedOut, GameID: id, Account: caller, State: g.State})
		if err := finish(tx, g, outcome, emit); err != nil {
			return err
		}
		return tx.PutGame(g)
	})
	if err != nil {
		return err
	}
	e.log.WithFields(log.Fields{"game": id, "claimant": caller, "outcome": outcome}).Info("timeout claimed")
	return nil
}

// Withdraw pays out the caller's whole ledger balance. If the wallet
// refuses the transfer the balance is left as it was.
func (e *Engine) Withdraw(ctx context.Context, caller Account) (uint64, error) {
	var amount uint64
	err := e.mutate(ctx, func(tx Tx, now time.Time, emit func(Event)) error {
		var err error
		if amount, err = tx.Balance(caller); err != nil {
			return err
		}
		if amount == 0 {
			return ErrNoFunds
		}
		if err := tx.SetBalance(caller, 0); err != nil {
			return err
		}
		ref := "withdraw:" + string(caller) + ":" + uuid.NewString()
		if err := tx.Wallet().Credit(caller, amount, ref); err != nil {
			return errors.Wrap(err, "transfer withdrawal")
		}
		emit(Event{Type: EventBalanceWithdrawn, Account: caller, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.WithFields(log.Fields{"account": caller, "amount": amount}).Info("balance withdrawn")
	return amount, nil
}

// GetGame returns a copy of the game record.
func (e *Engine) GetGame(ctx context.Context, id uint64) (*Game, error) {
	var g *Game
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		g, err = tx.Game(id)
		return err
	})
	return g, err
}

// GetBalance returns the withdrawable balance of a.
func (e *Engine) GetBalance(ctx context.Context, a Account) (uint64, error) {
	var bal uint64
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		bal, err = tx.Balance(a)
		return err
	})
	return bal, err
}

// finish moves g to Finished with the given outcome and credits the ledger.
func finish(tx Tx, g *Game, o Outcome, emit func(Event)) error {
	g.State = Finished
	g.Outcome = o
	if err := settle(tx, g); err != nil {
		return err
	}
	emit(Event{Type: EventGameFinished, GameID: g.ID, State: g.State, Outcome: o, Winner: g.Winner()})
	return nil
}

func betRef(id uint64, a Account) string {
	return "game:" + strconv.FormatUint(id, 10) + ":bet:" + string(a)
}
