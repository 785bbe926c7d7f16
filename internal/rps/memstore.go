package rps

import (
	"context"
	"sync"
)

// MemoryStore keeps the registry, ledger and wallet in process memory.
// Writes made inside Atomic are staged and applied only when fn succeeds.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   uint64
	games    map[uint64]*Game
	balances map[Account]uint64
	wallets  map[Account]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:    make(map[uint64]*Game),
		balances: make(map[Account]uint64),
		wallets:  make(map[Account]uint64),
	}
}

// Fund adds amount to a's wallet. It stands in for deposits made outside
// the engine.
func (s *MemoryStore) Fund(a Account, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[a] += amount
}

// WalletBalance returns a's available (not escrowed) funds.
func (s *MemoryStore) WalletBalance(a Account) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[a]
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:        s,
		nextID:   s.nextID,
		games:    make(map[uint64]*Game),
		balances: make(map[Account]uint64),
		wallets:  make(map[Account]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.nextID = tx.nextID
	for id, g := range tx.games {
		s.games[id] = g
	}
	for a, v := range tx.balances {
		s.balances[a] = v
	}
	for a, v := range tx.wallets {
		s.wallets[a] = v
	}
	return nil
}

// memTx overlays staged writes on top of the committed maps.
type memTx struct {
	s        *MemoryStore
	nextID   uint64
	games    map[uint64]*Game
	balances map[Account]uint64
	wallets  map[Account]uint64
}

func (t *memTx) NextGameID() (uint64, error) {
	id := t.nextID
	t.nextID++
	return id, nil
}

func (t *memTx) Game(id uint64) (*Game, error) {
	if g, ok := t.games[id]; ok {
		return g.Clone(), nil
	}
	if g, ok := t.s.games[id]; ok {
		return g.Clone(), nil
	}
	return nil, ErrNotFound
}

func (t *memTx) PutGame(g *Game) error {
	t.games[g.ID] = g.Clone()
	return nil
}

func (t *memTx) Balance(a Account) (uint64, error) {
	if v, ok := t.balances[a]; ok {
		return v, nil
	}
	return t.s.balances[a], nil
}

func (t *memTx) SetBalance(a Account, amount uint64) error {
	t.balances[a] = amount
	return nil
}

func (t *memTx) CreditBalance(a Account, amount uint64) error {
	bal, _ := t.Balance(a)
	sum, err := AddAmount(bal, amount)
	if err != nil {
		return err
	}
	t.balances[a] = sum
	return nil
}

func (t *memTx) Wallet() Wallet { return memWallet{t} }

type memWallet struct{ t *memTx }

func (w memWallet) funds(a Account) uint64 {
	if v, ok := w.t.wallets[a]; ok {
		return v
	}
	return w.t.s.wallets[a]
}

func (w memWallet) Debit(a Account, amount uint64, _ string) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	have := w.funds(a)
	if have < amount {
		return ErrInsufficientFunds
	}
	w.t.wallets[a] = have - amount
	return nil
}

func (w memWallet) Credit(a Account, amount uint64, _ string) error {
	sum, err := AddAmount(w.funds(a), amount)
	if err != nil {
		return err
	}
	w.t.wallets[a] = sum
	return nil
}
