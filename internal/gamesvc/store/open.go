package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/avvvet/rps-services/internal/db"
	"github.com/avvvet/rps-services/internal/gamesvc/config"
	pg "github.com/avvvet/rps-services/internal/gamesvc/db"
	"github.com/avvvet/rps-services/internal/gamesvc/models"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrDuplicateReference is returned for a deposit whose reference was
// already booked for the account.
var ErrDuplicateReference = errors.New("deposit reference already used")

// Wallets is the deposit side of the wallet, used by seeding and the pay
// service.
type Wallets interface {
	Deposit(ctx context.Context, account string, amount uint64, ref string) (uint64, error)
	WalletBalance(ctx context.Context, account string) (uint64, error)
}

// Journal is implemented by the backends that keep a wallet journal.
type Journal interface {
	Statement(ctx context.Context, account string, limit int) ([]models.Balance, error)
}

// Backend bundles the engine store with its wallet.
type Backend struct {
	Store   rps.Store
	Wallets Wallets
	Close   func()
}

// Open connects the backend selected by cfg.StoreDriver and prepares its
// schema.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pg.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Store:   NewGameStore(pool),
			Wallets: NewBalanceStore(pool),
			Close:   pool.Close,
		}, nil

	case config.DriverMongo:
		mdb, err := db.ConnectToDB(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureUniqueIndex(ctx, mdb, journalCollection, bson.D{{Key: "tref", Value: 1}, {Key: "account", Value: 1}, {Key: "ttype", Value: 1}}); err != nil {
			_ = mdb.Client().Disconnect(context.Background())
			return nil, err
		}
		ms := NewMongoStore(mdb)
		return &Backend{
			Store:   ms,
			Wallets: ms,
			Close:   func() { _ = mdb.Client().Disconnect(context.Background()) },
		}, nil

	case config.DriverMemory, "":
		ms := rps.NewMemoryStore()
		return &Backend{
			Store:   ms,
			Wallets: NewMemoryWallets(ms),
			Close:   func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Seed deposits the configured starting funds. Each account is seeded at
// most once per backend.
func Seed(ctx context.Context, w Wallets, accounts map[string]uint64) error {
	for account, amount := range accounts {
		if amount == 0 {
			continue
		}
		balance, err := w.Deposit(ctx, account, amount, "seed:"+account)
		if errors.Is(err, ErrDuplicateReference) {
			log.WithField("account", account).Debug("wallet already seeded")
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "seed %s", account)
		}
		log.WithFields(log.Fields{"account": account, "balance": balance}).Info("seeded wallet")
	}
	return nil
}

// MemoryWallets adds reference tracking on top of the in-memory wallet.
type MemoryWallets struct {
	mu   sync.Mutex
	ms   *rps.MemoryStore
	refs map[string]bool
}

func NewMemoryWallets(ms *rps.MemoryStore) *MemoryWallets {
	return &MemoryWallets{ms: ms, refs: make(map[string]bool)}
}

func (w *MemoryWallets) Deposit(_ context.Context, account string, amount uint64, ref string) (uint64, error) {
	if amount == 0 {
		return 0, errors.New("deposit amount must be positive")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	key := account + "\x00" + ref
	if w.refs[key] {
		return 0, errors.Wrapf(ErrDuplicateReference, "%s", ref)
	}
	if _, err := rps.AddAmount(w.ms.WalletBalance(rps.Account(account)), amount); err != nil {
		return 0, err
	}
	w.refs[key] = true
	w.ms.Fund(rps.Account(account), amount)
	return w.ms.WalletBalance(rps.Account(account)), nil
}

func (w *MemoryWallets) WalletBalance(_ context.Context, account string) (uint64, error) {
	return w.ms.WalletBalance(rps.Account(account)), nil
}
