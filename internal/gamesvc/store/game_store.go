package store

import (
	"context"
	"time"

	"github.com/avvvet/rps-services/internal/gamesvc/models"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// GameStore keeps games, the winnings ledger and the wallet journal in
// postgres. Every engine operation runs in one pg transaction.
type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) Atomic(ctx context.Context, fn func(tx rps.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgTx{ctx: ctx, tx: tx})
	})
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) NextGameID() (uint64, error) {
	var id int64
	err := t.tx.QueryRow(t.ctx, `
		UPDATE rps_counters SET value = value + 1
		WHERE name = 'game_id'
		RETURNING value - 1
	`).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "allocate game id")
	}
	return uint64(id), nil
}

func (t *pgTx) Game(id uint64) (*rps.Game, error) {
	query := `
		SELECT id, player1, player2, bet, state, commit1, commit2, p1_move, p2_move,
		       p1_revealed, p2_revealed, outcome, created_at, updated_at
		FROM rps_games
		WHERE id = $1
		FOR UPDATE
	`

	var (
		gid, bet               int64
		state, m1, m2, outcome int16
		c1, c2                 []byte
		p1, p2                 string
		created, updated       time.Time
		p1Revealed, p2Revealed bool
	)
	err := t.tx.QueryRow(t.ctx, query, int64(id)).Scan(
		&gid, &p1, &p2, &bet, &state, &c1, &c2, &m1, &m2,
		&p1Revealed, &p2Revealed, &outcome, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(rps.ErrNotFound, "game %d", id)
		}
		return nil, errors.Wrap(err, "get game")
	}

	g := &rps.Game{
		ID:         uint64(gid),
		Player1:    rps.Account(p1),
		Player2:    rps.Account(p2),
		Bet:        uint64(bet),
		State:      rps.State(state),
		P1Move:     rps.Move(m1),
		P2Move:     rps.Move(m2),
		P1Revealed: p1Revealed,
		P2Revealed: p2Revealed,
		Outcome:    rps.Outcome(outcome),
		CreatedAt:  created.UTC(),
		UpdatedAt:  updated.UTC(),
	}
	copy(g.Commit1[:], c1)
	copy(g.Commit2[:], c2)
	return g, nil
}

func (t *pgTx) PutGame(g *rps.Game) error {
	query := `
		INSERT INTO rps_games (id, player1, player2, bet, state, commit1, commit2, p1_move, p2_move,
		                       p1_revealed, p2_revealed, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			commit1 = EXCLUDED.commit1,
			commit2 = EXCLUDED.commit2,
			p1_move = EXCLUDED.p1_move,
			p2_move = EXCLUDED.p2_move,
			p1_revealed = EXCLUDED.p1_revealed,
			p2_revealed = EXCLUDED.p2_revealed,
			outcome = EXCLUDED.outcome,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(t.ctx, query,
		int64(g.ID), string(g.Player1), string(g.Player2), int64(g.Bet), int16(g.State),
		commitBytes(g.Commit1), commitBytes(g.Commit2), int16(g.P1Move), int16(g.P2Move),
		g.P1Revealed, g.P2Revealed, int16(g.Outcome), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "put game %d", g.ID)
	}
	return nil
}

func (t *pgTx) Balance(a rps.Account) (uint64, error) {
	var amount int64
	err := t.tx.QueryRow(t.ctx, `SELECT amount FROM rps_ledger WHERE account = $1 FOR UPDATE`, string(a)).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get ledger balance")
	}
	return uint64(amount), nil
}

func (t *pgTx) SetBalance(a rps.Account, amount uint64) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO rps_ledger (account, amount, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
	`, string(a), int64(amount))
	if err != nil {
		return errors.Wrap(err, "set ledger balance")
	}
	return nil
}

// CreditBalance increments the ledger row in place, so concurrent credits
// to an account without a row yet both land.
func (t *pgTx) CreditBalance(a rps.Account, amount uint64) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	var total int64
	err := t.tx.QueryRow(t.ctx, `
		INSERT INTO rps_ledger (account, amount, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account) DO UPDATE SET amount = rps_ledger.amount + EXCLUDED.amount, updated_at = now()
		WHERE rps_ledger.amount <= $3 - EXCLUDED.amount
		RETURNING amount
	`, string(a), int64(amount), int64(rps.MaxAmount)).Scan(&total)
	if err != nil {
		// the guard filtered the update out
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(rps.ErrAmountOverflow, "ledger of %s", a)
		}
		return errors.Wrap(err, "credit ledger balance")
	}
	return nil
}

func (t *pgTx) Wallet() rps.Wallet { return pgWallet{t} }

// pgWallet books wallet movements as rows of the balances journal.
type pgWallet struct{ t *pgTx }

func (w pgWallet) Debit(a rps.Account, amount uint64, ref string) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	available, err := walletBalance(w.t.ctx, w.t.tx, string(a), true)
	if err != nil {
		return err
	}
	if available < amount {
		return errors.Wrapf(rps.ErrInsufficientFunds, "%s has %d, needs %d", a, available, amount)
	}
	return insertJournal(w.t.ctx, w.t.tx, models.Balance{
		Account: string(a),
		TType:   models.TTypeBet,
		Cr:      models.ToMajor(amount),
		TRef:    ref,
	})
}

func (w pgWallet) Credit(a rps.Account, amount uint64, ref string) error {
	available, err := walletBalance(w.t.ctx, w.t.tx, string(a), true)
	if err != nil {
		return err
	}
	if _, err := rps.AddAmount(available, amount); err != nil {
		return err
	}
	return insertJournal(w.t.ctx, w.t.tx, models.Balance{
		Account: string(a),
		TType:   models.TTypeWithdrawal,
		Dr:      models.ToMajor(amount),
		TRef:    ref,
	})
}

func commitBytes(c rps.Commitment) []byte {
	if c.IsZero() {
		return nil
	}
	return c[:]
}
