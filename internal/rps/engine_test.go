package rps

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	p1       Account = "p1"
	p2       Account = "p2"
	intruder Account = "intruder"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct{ events []Event }

func (r *recorder) Notify(e Event) { r.events = append(r.events, e) }

func (r *recorder) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx    context.Context
	engine *Engine
	store  *MemoryStore
	clock  *testClock
	events *recorder
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	store := NewMemoryStore()
	store.Fund(p1, 100)
	store.Fund(p2, 100)
	store.Fund(intruder, 100)
	clock := &testClock{t: time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	return &fixture{
		ctx:    context.Background(),
		store:  store,
		clock:  clock,
		events: rec,
		engine: NewEngine(store, Options{ActionTimeout: timeout, Notifier: rec, Now: clock.now}),
	}
}

func (f *fixture) game(t *testing.T, id uint64) *Game {
	t.Helper()
	g, err := f.engine.GetGame(f.ctx, id)
	require.NoError(t, err)
	return g
}

func (f *fixture) balance(t *testing.T, a Account) uint64 {
	t.Helper()
	b, err := f.engine.GetBalance(f.ctx, a)
	require.NoError(t, err)
	return b
}

// joined creates and joins a game with the given bet.
func (f *fixture) joined(t *testing.T, bet uint64) uint64 {
	t.Helper()
	id, err := f.engine.CreateGame(f.ctx, p1, p2, bet)
	require.NoError(t, err)
	require.NoError(t, f.engine.JoinGame(f.ctx, p2, id, bet))
	return id
}

// committed drives a game into Revealing with the given moves.
func (f *fixture) committed(t *testing.T, bet uint64, m1, m2 Move) uint64 {
	t.Helper()
	id := f.joined(t, bet)
	require.NoError(t, f.engine.CommitMove(f.ctx, p1, id, Commit(m1, mustSecret(t, "s1"))))
	require.NoError(t, f.engine.CommitMove(f.ctx, p2, id, Commit(m2, mustSecret(t, "s2"))))
	return id
}

func TestFullRoundPlayer2Wins(t *testing.T) {
	f := newFixture(t, 0)

	id, err := f.engine.CreateGame(f.ctx, p1, p2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, WaitingForPlayer2, f.game(t, id).State)
	assert.Equal(t, uint64(99), f.store.WalletBalance(p1))

	require.NoError(t, f.engine.JoinGame(f.ctx, p2, id, 1))
	assert.Equal(t, Committing, f.game(t, id).State)
	assert.Equal(t, uint64(99), f.store.WalletBalance(p2))

	require.NoError(t, f.engine.CommitMove(f.ctx, p1, id, Commit(Rock, mustSecret(t, "s1"))))
	assert.Equal(t, Committing, f.game(t, id).State)
	require.NoError(t, f.engine.CommitMove(f.ctx, p2, id, Commit(Paper, mustSecret(t, "s2"))))
	assert.Equal(t, Revealing, f.game(t, id).State)

	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))
	assert.Equal(t, Revealing, f.game(t, id).State)
	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Paper, mustSecret(t, "s2")))

	g := f.game(t, id)
	assert.Equal(t, Finished, g.State)
	assert.Equal(t, Player2Wins, g.Outcome)
	assert.Equal(t, p2, g.Winner())
	assert.Equal(t, Rock, g.P1Move)
	assert.Equal(t, Paper, g.P2Move)
	assert.True(t, g.P1Revealed && g.P2Revealed)
	assert.Equal(t, uint64(2), f.balance(t, p2))
	assert.Zero(t, f.balance(t, p1))

	amount, err := f.engine.Withdraw(f.ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), amount)
	assert.Zero(t, f.balance(t, p2))
	assert.Equal(t, uint64(101), f.store.WalletBalance(p2))

	_, err = f.engine.Withdraw(f.ctx, p2)
	assert.ErrorIs(t, err, ErrNoFunds)

	assert.Equal(t, []EventType{
		EventGameCreated, EventGameJoined, EventMoveCommitted, EventMoveCommitted,
		EventMoveRevealed, EventMoveRevealed, EventGameFinished, EventBalanceWithdrawn,
	}, f.events.types())
}

func TestDrawRefundsBothPlayers(t *testing.T) {
	f := newFixture(t, 0)
	id := f.committed(t, 1, Scissors, Scissors)

	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Scissors, mustSecret(t, "s2")))
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Scissors, mustSecret(t, "s1")))

	g := f.game(t, id)
	assert.Equal(t, Finished, g.State)
	assert.Equal(t, Draw, g.Outcome)
	assert.Empty(t, g.Winner())
	assert.Equal(t, uint64(1), f.balance(t, p1))
	assert.Equal(t, uint64(1), f.balance(t, p2))
}

func TestValueConservationForEveryMovePair(t *testing.T) {
	moves := []Move{Rock, Paper, Scissors}
	for _, m1 := range moves {
		for _, m2 := range moves {
			t.Run(m1.String()+"_"+m2.String(), func(t *testing.T) {
				f := newFixture(t, 0)
				const bet = 7
				id := f.committed(t, bet, m1, m2)
				require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, m1, mustSecret(t, "s1")))
				require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, m2, mustSecret(t, "s2")))

				b1, b2 := f.balance(t, p1), f.balance(t, p2)
				assert.Equal(t, uint64(2*bet), b1+b2)
				switch Resolve(m1, m2) {
				case Draw:
					assert.Equal(t, uint64(bet), b1)
					assert.Equal(t, uint64(bet), b2)
				case Player1Wins:
					assert.Equal(t, uint64(2*bet), b1)
				case Player2Wins:
					assert.Equal(t, uint64(2*bet), b2)
				}
				// escrowed funds left the wallets and never came back on their own
				assert.Equal(t, uint64(100-bet), f.store.WalletBalance(p1))
				assert.Equal(t, uint64(100-bet), f.store.WalletBalance(p2))
			})
		}
	}
}

func TestCreateGameValidation(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.engine.CreateGame(f.ctx, p1, p2, 0)
	assert.ErrorIs(t, err, ErrInvalidBet)
	_, err = f.engine.CreateGame(f.ctx, p1, p1, 1)
	assert.ErrorIs(t, err, ErrInvalidOpponent)
	_, err = f.engine.CreateGame(f.ctx, p1, "", 1)
	assert.ErrorIs(t, err, ErrInvalidOpponent)
	_, err = f.engine.CreateGame(f.ctx, p1, p2, 101)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// rejected creations did not consume ids or funds
	id, err := f.engine.CreateGame(f.ctx, p1, p2, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	id, err = f.engine.CreateGame(f.ctx, p1, p2, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(90), f.store.WalletBalance(p1))
}

func TestJoinGameErrors(t *testing.T) {
	f := newFixture(t, 0)
	id, err := f.engine.CreateGame(f.ctx, p1, p2, 10)
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, 42, 10), ErrNotFound)
	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, intruder, id, 10), ErrUnauthorizedCaller)
	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p1, id, 10), ErrUnauthorizedCaller)
	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, id, 9), ErrBetMismatch)
	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, id, 11), ErrBetMismatch)
	assert.Equal(t, uint64(100), f.store.WalletBalance(p2))

	require.NoError(t, f.engine.JoinGame(f.ctx, p2, id, 10))
	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, id, 10), ErrInvalidState)
	assert.Equal(t, uint64(90), f.store.WalletBalance(p2))
}

func TestJoinGameInsufficientFundsLeavesGameWaiting(t *testing.T) {
	f := newFixture(t, 0)
	f.store.Fund("rich", 1000)
	id, err := f.engine.CreateGame(f.ctx, "rich", p2, 500)
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, id, 500), ErrInsufficientFunds)
	assert.Equal(t, WaitingForPlayer2, f.game(t, id).State)
	assert.Equal(t, uint64(100), f.store.WalletBalance(p2))
}

func TestCommitMoveErrors(t *testing.T) {
	f := newFixture(t, 0)
	id, err := f.engine.CreateGame(f.ctx, p1, p2, 1)
	require.NoError(t, err)
	c := Commit(Rock, mustSecret(t, "s1"))

	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, p1, id, c), ErrInvalidState, "commit before join")
	require.NoError(t, f.engine.JoinGame(f.ctx, p2, id, 1))

	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, p1, 9, c), ErrNotFound)
	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, intruder, id, c), ErrUnauthorizedCaller)
	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, p1, id, Commitment{}), ErrInvalidCommitment)

	require.NoError(t, f.engine.CommitMove(f.ctx, p1, id, c))
	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, p1, id, Commit(Paper, mustSecret(t, "s1"))), ErrAlreadyCommitted)
	assert.Equal(t, c, f.game(t, id).Commit1, "second commit must not overwrite the first")

	require.NoError(t, f.engine.CommitMove(f.ctx, p2, id, Commit(Paper, mustSecret(t, "s2"))))
	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, p2, id, c), ErrInvalidState)
}

func TestRevealBeforeBothCommitsIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	id := f.joined(t, 1)
	require.NoError(t, f.engine.CommitMove(f.ctx, p1, id, Commit(Rock, mustSecret(t, "s1"))))

	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")), ErrInvalidState)
	assert.False(t, f.game(t, id).P1Revealed)
}

func TestRevealMoveErrors(t *testing.T) {
	f := newFixture(t, 0)
	id := f.committed(t, 1, Rock, Paper)
	s2 := mustSecret(t, "s2")

	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, p2, 77, Paper, s2), ErrNotFound)
	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, intruder, id, Paper, s2), ErrUnauthorizedCaller)
	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, p2, id, None, s2), ErrInvalidMove)
	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, p2, id, Move(9), s2), ErrInvalidMove)

	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Paper, s2))
	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, p2, id, Paper, s2), ErrAlreadyRevealed)
}

func TestCommitmentMismatchLeavesGameRevealing(t *testing.T) {
	f := newFixture(t, 0)
	id := f.committed(t, 1, Rock, Paper)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))
	before := f.game(t, id)

	err := f.engine.RevealMove(f.ctx, p2, id, Scissors, mustSecret(t, "s2"))
	assert.ErrorIs(t, err, ErrCommitmentMismatch)
	err = f.engine.RevealMove(f.ctx, p2, id, Paper, mustSecret(t, "wrong"))
	assert.ErrorIs(t, err, ErrCommitmentMismatch)

	after := f.game(t, id)
	assert.Equal(t, before, after)
	assert.Equal(t, Revealing, after.State)
	assert.Zero(t, f.balance(t, p1)+f.balance(t, p2))

	// the caller can retry with the right opening
	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Paper, mustSecret(t, "s2")))
	assert.Equal(t, Finished, f.game(t, id).State)
}

func TestCommitmentIsBinding(t *testing.T) {
	secrets := []string{"s1", "s2", "", "p1-secret", "another salt"}
	for _, other := range []Move{Paper, Scissors} {
		for _, s := range secrets {
			f := newFixture(t, 0)
			id := f.committed(t, 1, Rock, Paper)
			err := f.engine.RevealMove(f.ctx, p1, id, other, mustSecret(t, s))
			assert.ErrorIs(t, err, ErrCommitmentMismatch, "%s/%q", other, s)
		}
	}
}

func TestFinishedGameRejectsEverything(t *testing.T) {
	f := newFixture(t, time.Minute)
	id := f.committed(t, 1, Rock, Scissors)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))
	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Scissors, mustSecret(t, "s2")))
	f.clock.advance(time.Hour)

	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, id, 1), ErrInvalidState)
	assert.ErrorIs(t, f.engine.CommitMove(f.ctx, p1, id, Commit(Rock, mustSecret(t, "x"))), ErrInvalidState)
	assert.ErrorIs(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")), ErrInvalidState)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p1, id), ErrInvalidState)
	assert.Equal(t, uint64(2), f.balance(t, p1), "pot is credited once")
}

func TestWithdrawAccumulatesAcrossGames(t *testing.T) {
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		id := f.committed(t, 2, Paper, Rock)
		require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Paper, mustSecret(t, "s1")))
		require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Rock, mustSecret(t, "s2")))
	}
	assert.Equal(t, uint64(12), f.balance(t, p1))

	amount, err := f.engine.Withdraw(f.ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), amount)
	assert.Equal(t, uint64(106), f.store.WalletBalance(p1))

	_, err = f.engine.Withdraw(f.ctx, p1)
	assert.ErrorIs(t, err, ErrNoFunds)
	_, err = f.engine.Withdraw(f.ctx, intruder)
	assert.ErrorIs(t, err, ErrNoFunds)
}

var errWalletDown = errors.New("wallet unavailable")

// brokenWalletStore fails every wallet credit.
type brokenWalletStore struct{ *MemoryStore }

func (s brokenWalletStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.MemoryStore.Atomic(ctx, func(tx Tx) error { return fn(brokenWalletTx{tx}) })
}

type brokenWalletTx struct{ Tx }

func (t brokenWalletTx) Wallet() Wallet { return brokenWallet{t.Tx.Wallet()} }

type brokenWallet struct{ Wallet }

func (brokenWallet) Credit(Account, uint64, string) error { return errWalletDown }

func TestWithdrawFailureKeepsBalance(t *testing.T) {
	f := newFixture(t, 0)
	id := f.committed(t, 3, Rock, Scissors)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))
	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Scissors, mustSecret(t, "s2")))

	broken := NewEngine(brokenWalletStore{f.store}, Options{})
	_, err := broken.Withdraw(f.ctx, p1)
	assert.ErrorIs(t, err, errWalletDown)
	assert.Equal(t, uint64(6), f.balance(t, p1))

	amount, err := f.engine.Withdraw(f.ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), amount)
}

func TestTimeoutDisabledByDefault(t *testing.T) {
	f := newFixture(t, 0)
	id := f.joined(t, 1)
	f.clock.advance(24 * time.Hour)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p1, id), ErrTimeoutDisabled)
}

func TestTimeoutCancelsUnjoinedGame(t *testing.T) {
	f := newFixture(t, time.Hour)
	id, err := f.engine.CreateGame(f.ctx, p1, p2, 4)
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p1, id), ErrTimeoutNotReached)
	f.clock.advance(time.Hour + time.Second)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p2, id), ErrUnauthorizedCaller)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, intruder, id), ErrUnauthorizedCaller)

	require.NoError(t, f.engine.ClaimTimeout(f.ctx, p1, id))
	g := f.game(t, id)
	assert.Equal(t, Finished, g.State)
	assert.Equal(t, Cancelled, g.Outcome)
	assert.Equal(t, uint64(4), f.balance(t, p1))
	assert.ErrorIs(t, f.engine.JoinGame(f.ctx, p2, id, 4), ErrInvalidState)
}

func TestTimeoutForfeitsStalledRevealer(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := f.committed(t, 5, Rock, Paper)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))

	f.clock.advance(30 * time.Minute)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p1, id), ErrTimeoutNotReached)
	f.clock.advance(31 * time.Minute)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p2, id), ErrUnauthorizedCaller, "the staller cannot claim")

	require.NoError(t, f.engine.ClaimTimeout(f.ctx, p1, id))
	g := f.game(t, id)
	assert.Equal(t, Player2Forfeit, g.Outcome)
	assert.Equal(t, p1, g.Winner())
	assert.Equal(t, uint64(10), f.balance(t, p1))
	assert.Zero(t, f.balance(t, p2))
}

func TestTimeoutForfeitsStalledCommitter(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := f.joined(t, 5)
	require.NoError(t, f.engine.CommitMove(f.ctx, p2, id, Commit(Paper, mustSecret(t, "s2"))))
	f.clock.advance(2 * time.Hour)

	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p1, id), ErrUnauthorizedCaller)
	require.NoError(t, f.engine.ClaimTimeout(f.ctx, p2, id))
	assert.Equal(t, Player1Forfeit, f.game(t, id).Outcome)
	assert.Equal(t, uint64(10), f.balance(t, p2))
}

func TestTimeoutWithNobodyActingRefundsBoth(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := f.committed(t, 3, Rock, Rock)
	f.clock.advance(2 * time.Hour)

	require.NoError(t, f.engine.ClaimTimeout(f.ctx, p2, id))
	g := f.game(t, id)
	assert.Equal(t, Draw, g.Outcome)
	assert.Equal(t, uint64(3), f.balance(t, p1))
	assert.Equal(t, uint64(3), f.balance(t, p2))
	assert.Equal(t, []EventType{EventGameTimedOut, EventGameFinished}, f.events.types()[len(f.events.types())-2:])
}

func TestTimeoutClockRestartsOnEachAction(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := f.joined(t, 1)
	f.clock.advance(50 * time.Minute)
	require.NoError(t, f.engine.CommitMove(f.ctx, p1, id, Commit(Rock, mustSecret(t, "s1"))))
	f.clock.advance(50 * time.Minute)
	assert.ErrorIs(t, f.engine.ClaimTimeout(f.ctx, p1, id), ErrTimeoutNotReached)
}

func TestFailedCallsEmitNothing(t *testing.T) {
	f := newFixture(t, 0)
	_, _ = f.engine.CreateGame(f.ctx, p1, p2, 0)
	_ = f.engine.JoinGame(f.ctx, p2, 3, 1)
	_, _ = f.engine.Withdraw(f.ctx, p1)
	assert.Empty(t, f.events.events)
}

func TestCanceledContextAbortsBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.CreateGame(ctx, p1, p2, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(100), f.store.WalletBalance(p1))
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrNoFunds))
	assert.True(t, IsDomainError(errors.Wrap(ErrNotFound, "lookup")))
	assert.False(t, IsDomainError(errWalletDown))
}

func TestBetAboveMaxBetIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	f.store.Fund(p1, MaxAmount-100)

	for _, bet := range []uint64{MaxBet + 1, 1 << 63, ^uint64(0)} {
		_, err := f.engine.CreateGame(f.ctx, p1, p2, bet)
		assert.ErrorIs(t, err, ErrInvalidBet, "bet %d", bet)
	}
	assert.Equal(t, MaxAmount, f.store.WalletBalance(p1))
	assert.Empty(t, f.events.events)

	id, err := f.engine.CreateGame(f.ctx, p1, p2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
}

func TestMaxBetPotIsCreditedExactly(t *testing.T) {
	f := newFixture(t, 0)
	f.store.Fund(p1, MaxBet)
	f.store.Fund(p2, MaxBet)

	id := f.committed(t, MaxBet, Rock, Scissors)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))
	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Scissors, mustSecret(t, "s2")))

	assert.Equal(t, 2*MaxBet, f.balance(t, p1))
	assert.Equal(t, uint64(100), f.store.WalletBalance(p1))
	assert.Equal(t, uint64(100), f.store.WalletBalance(p2))
}

func TestLedgerOverflowRollsBackResolution(t *testing.T) {
	f := newFixture(t, 0)
	f.store.Fund(p1, MaxBet)
	f.store.Fund(p2, MaxBet)

	id := f.committed(t, MaxBet, Paper, Rock)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Paper, mustSecret(t, "s1")))
	require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Rock, mustSecret(t, "s2")))
	require.Equal(t, MaxAmount-1, f.balance(t, p1))

	// a further pot of 2 does not fit into p1's ledger balance
	id = f.committed(t, 1, Paper, Rock)
	require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Paper, mustSecret(t, "s1")))
	err := f.engine.RevealMove(f.ctx, p2, id, Rock, mustSecret(t, "s2"))
	assert.ErrorIs(t, err, ErrAmountOverflow)

	g := f.game(t, id)
	assert.Equal(t, Revealing, g.State)
	assert.False(t, g.P2Revealed)
	assert.Equal(t, MaxAmount-1, f.balance(t, p1))
	assert.Equal(t, uint64(99), f.store.WalletBalance(p2), "escrow stays with the game")
}

func TestAddAmount(t *testing.T) {
	sum, err := AddAmount(MaxAmount-1, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxAmount, sum)

	_, err = AddAmount(MaxAmount, 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
	_, err = AddAmount(1, ^uint64(0))
	assert.ErrorIs(t, err, ErrAmountOverflow)
	assert.ErrorIs(t, CheckAmount(1<<63), ErrAmountOverflow)
	assert.NoError(t, CheckAmount(MaxAmount))
}

// refStore records the references of wallet credits.
type refStore struct {
	*MemoryStore
	refs *[]string
}

func (s refStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.MemoryStore.Atomic(ctx, func(tx Tx) error { return fn(refTx{tx, s.refs}) })
}

type refTx struct {
	Tx
	refs *[]string
}

func (t refTx) Wallet() Wallet { return refWallet{t.Tx.Wallet(), t.refs} }

type refWallet struct {
	Wallet
	refs *[]string
}

func (w refWallet) Credit(a Account, amount uint64, ref string) error {
	*w.refs = append(*w.refs, ref)
	return w.Wallet.Credit(a, amount, ref)
}

func TestWithdrawReferencesAreUniqueUnderFrozenClock(t *testing.T) {
	f := newFixture(t, 0)
	var refs []string
	e := NewEngine(refStore{f.store, &refs}, Options{Now: f.clock.now})

	for i := 0; i < 2; i++ {
		id := f.committed(t, 1, Rock, Scissors)
		require.NoError(t, f.engine.RevealMove(f.ctx, p1, id, Rock, mustSecret(t, "s1")))
		require.NoError(t, f.engine.RevealMove(f.ctx, p2, id, Scissors, mustSecret(t, "s2")))
		_, err := e.Withdraw(f.ctx, p1)
		require.NoError(t, err)
	}
	require.Len(t, refs, 2)
	assert.NotEqual(t, refs[0], refs[1])
}
