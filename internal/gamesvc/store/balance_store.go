package store

import (
	"context"

	"github.com/avvvet/rps-services/internal/gamesvc/models"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type BalanceStore struct {
	db *pgxpool.Pool
}

func NewBalanceStore(db *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{db: db}
}

// WalletBalance returns the account's available wallet funds in minor units.
func (c *BalanceStore) WalletBalance(ctx context.Context, account string) (uint64, error) {
	return walletBalance(ctx, c.db, account, false)
}

// Deposit books amount as a verified deposit and returns the new balance.
// A reference that was already booked fails with ErrDuplicateReference.
func (c *BalanceStore) Deposit(ctx context.Context, account string, amount uint64, ref string) (uint64, error) {
	if amount == 0 {
		return 0, errors.New("deposit amount must be positive")
	}

	var balance uint64
	err := pgx.BeginTxFunc(ctx, c.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// takes the account lock before the duplicate check
		available, err := walletBalance(ctx, tx, account, true)
		if err != nil {
			return err
		}

		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM balances WHERE account = $1 AND tref = $2 AND ttype = $3)
		`, account, ref, models.TTypeDeposit).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "check deposit reference")
		}

		if exists {
			return errors.Wrapf(ErrDuplicateReference, "%s", ref)
		}
		if _, err := rps.AddAmount(available, amount); err != nil {
			return err
		}

		err = insertJournal(ctx, tx, models.Balance{
			Account: account,
			TType:   models.TTypeDeposit,
			Dr:      models.ToMajor(amount),
			TRef:    ref,
		})
		if err != nil {
			return err
		}

		balance, err = walletBalance(ctx, tx, account, false)
		return err
	})
	return balance, err
}

// Statement lists the most recent journal rows of an account, newest first.
func (c *BalanceStore) Statement(ctx context.Context, account string, limit int) ([]models.Balance, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(ctx, `
		SELECT id, account, ttype, dr, cr, tref, status, created_at, updated_at
		FROM balances
		WHERE account = $1
		ORDER BY id DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query statement")
	}
	defer rows.Close()

	var out []models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.ID, &b.Account, &b.TType, &b.Dr, &b.Cr, &b.TRef, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan statement row")
		}
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "read statement")
}

// walletBalance sums the verified journal rows of account. With lock set
// it first takes a transaction scoped advisory lock on the account so
// concurrent debits serialize.
func walletBalance(ctx context.Context, q querier, account string, lock bool) (uint64, error) {
	if lock {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, account); err != nil {
			return 0, errors.Wrap(err, "lock wallet")
		}
	}

	var totalDr, totalCr decimal.Decimal
	err := q.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE account = $1 AND status = 'verified'
    `, account).Scan(&totalDr, &totalCr)
	if err != nil {
		return 0, errors.Wrap(err, "sum wallet journal")
	}

	return models.ToMinor(totalDr.Sub(totalCr)), nil
}

func insertJournal(ctx context.Context, q querier, b models.Balance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO balances (account, ttype, dr, cr, tref, status)
		VALUES ($1, $2, $3, $4, $5, 'verified')
	`, b.Account, b.TType, b.Dr, b.Cr, b.TRef)
	if err != nil {
		return errors.Wrapf(err, "book %s %s", b.TType, b.TRef)
	}
	return nil
}
