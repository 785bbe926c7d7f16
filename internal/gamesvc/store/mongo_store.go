package store

import (
	"context"
	"time"

	"github.com/avvvet/rps-services/internal/gamesvc/models"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	gamesCollection    = "games"
	ledgerCollection   = "ledger"
	countersCollection = "counters"
	walletsCollection  = "wallets"
	journalCollection  = "wallet_journal"
)

type mongoGame struct {
	ID         int64     `bson:"_id"`
	Player1    string    `bson:"player1"`
	Player2    string    `bson:"player2"`
	Bet        int64     `bson:"bet"`
	State      int32     `bson:"state"`
	Commit1    []byte    `bson:"commit1,omitempty"`
	Commit2    []byte    `bson:"commit2,omitempty"`
	P1Move     int32     `bson:"p1_move"`
	P2Move     int32     `bson:"p2_move"`
	P1Revealed bool      `bson:"p1_revealed"`
	P2Revealed bool      `bson:"p2_revealed"`
	Outcome    int32     `bson:"outcome"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type journalEntry struct {
	Account   string    `bson:"account"`
	TType     string    `bson:"ttype"`
	Amount    int64     `bson:"amount"`
	TRef      string    `bson:"tref"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore is the mongo backend. Transactions need a replica set.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Atomic(ctx context.Context, fn func(tx rps.Tx) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return errors.Wrap(err, "start mongo session")
	}
	defer session.EndSession(ctx)

	// WithTransaction may call back more than once on transient errors
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoTx{ctx: sc, db: s.db})
	})
	return err
}

// WalletBalance returns the account's available wallet funds.
func (s *MongoStore) WalletBalance(ctx context.Context, account string) (uint64, error) {
	return mongoWalletBalance(ctx, s.db, account)
}

// Deposit credits the wallet once per reference and returns the balance.
// A reference seen before fails with ErrDuplicateReference.
func (s *MongoStore) Deposit(ctx context.Context, account string, amount uint64, ref string) (uint64, error) {
	if amount == 0 {
		return 0, errors.New("deposit amount must be positive")
	}
	if err := rps.CheckAmount(amount); err != nil {
		return 0, err
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return 0, errors.Wrap(err, "start mongo session")
	}
	defer session.EndSession(ctx)

	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		n, err := s.db.Collection(journalCollection).CountDocuments(sc, bson.M{
			"account": account, "tref": ref, "ttype": models.TTypeDeposit,
		})
		if err != nil {
			return nil, errors.Wrap(err, "check deposit reference")
		}
		if n > 0 {
			return nil, errors.Wrapf(ErrDuplicateReference, "%s", ref)
		}
		if err := bookMongo(sc, s.db, account, int64(amount), models.TTypeDeposit, ref); err != nil {
			return nil, err
		}
		return mongoWalletBalance(sc, s.db, account)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

type mongoTx struct {
	ctx context.Context
	db  *mongo.Database
}

func (t *mongoTx) NextGameID() (uint64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)
	err := t.db.Collection(countersCollection).FindOneAndUpdate(t.ctx,
		bson.M{"_id": "game_id"},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		// the upsert created the counter, so this is the first game
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "allocate game id")
	}
	return uint64(counter.Value), nil
}

func (t *mongoTx) Game(id uint64) (*rps.Game, error) {
	var doc mongoGame
	err := t.db.Collection(gamesCollection).FindOne(t.ctx, bson.M{"_id": int64(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(rps.ErrNotFound, "game %d", id)
		}
		return nil, errors.Wrap(err, "get game")
	}

	g := &rps.Game{
		ID:         uint64(doc.ID),
		Player1:    rps.Account(doc.Player1),
		Player2:    rps.Account(doc.Player2),
		Bet:        uint64(doc.Bet),
		State:      rps.State(doc.State),
		P1Move:     rps.Move(doc.P1Move),
		P2Move:     rps.Move(doc.P2Move),
		P1Revealed: doc.P1Revealed,
		P2Revealed: doc.P2Revealed,
		Outcome:    rps.Outcome(doc.Outcome),
		CreatedAt:  doc.CreatedAt.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
	}
	copy(g.Commit1[:], doc.Commit1)
	copy(g.Commit2[:], doc.Commit2)
	return g, nil
}

func (t *mongoTx) PutGame(g *rps.Game) error {
	doc := mongoGame{
		ID:         int64(g.ID),
		Player1:    string(g.Player1),
		Player2:    string(g.Player2),
		Bet:        int64(g.Bet),
		State:      int32(g.State),
		Commit1:    commitBytes(g.Commit1),
		Commit2:    commitBytes(g.Commit2),
		P1Move:     int32(g.P1Move),
		P2Move:     int32(g.P2Move),
		P1Revealed: g.P1Revealed,
		P2Revealed: g.P2Revealed,
		Outcome:    int32(g.Outcome),
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
	_, err := t.db.Collection(gamesCollection).ReplaceOne(t.ctx,
		bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "put game %d", g.ID)
}

func (t *mongoTx) Balance(a rps.Account) (uint64, error) {
	var doc struct {
		Amount int64 `bson:"amount"`
	}
	err := t.db.Collection(ledgerCollection).FindOne(t.ctx, bson.M{"_id": string(a)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get ledger balance")
	}
	return uint64(doc.Amount), nil
}

func (t *mongoTx) SetBalance(a rps.Account, amount uint64) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	_, err := t.db.Collection(ledgerCollection).UpdateOne(t.ctx,
		bson.M{"_id": string(a)},
		bson.M{"$set": bson.M{"amount": int64(amount), "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "set ledger balance")
}

// CreditBalance increments the ledger document in place.
func (t *mongoTx) CreditBalance(a rps.Account, amount uint64) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	return incGuarded(t.ctx, t.db.Collection(ledgerCollection), string(a), "amount", int64(amount))
}

func (t *mongoTx) Wallet() rps.Wallet { return mongoWallet{t} }

type mongoWallet struct{ t *mongoTx }

func (w mongoWallet) Debit(a rps.Account, amount uint64, ref string) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	// the balance guard in the filter makes the decrement conditional
	res, err := w.t.db.Collection(walletsCollection).UpdateOne(w.t.ctx,
		bson.M{"_id": string(a), "balance": bson.M{"$gte": int64(amount)}},
		bson.M{"$inc": bson.M{"balance": -int64(amount)}},
	)
	if err != nil {
		return errors.Wrap(err, "debit wallet")
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(rps.ErrInsufficientFunds, "%s needs %d", a, amount)
	}
	return journalMongo(w.t.ctx, w.t.db, string(a), -int64(amount), models.TTypeBet, ref)
}

func (w mongoWallet) Credit(a rps.Account, amount uint64, ref string) error {
	if err := rps.CheckAmount(amount); err != nil {
		return err
	}
	return bookMongo(w.t.ctx, w.t.db, string(a), int64(amount), models.TTypeWithdrawal, ref)
}

// bookMongo adds amount (at most rps.MaxAmount) to the wallet and journals it.
func bookMongo(ctx context.Context, db *mongo.Database, account string, amount int64, ttype, ref string) error {
	if err := incGuarded(ctx, db.Collection(walletsCollection), account, "balance", amount); err != nil {
		return err
	}
	return journalMongo(ctx, db, account, amount, ttype, ref)
}

// incGuarded adds amount to field of document id, creating it when missing.
// A document whose field would pass rps.MaxAmount does not match the
// filter, so the upsert collides with its _id and the add is refused.
func incGuarded(ctx context.Context, coll *mongo.Collection, id, field string, amount int64) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, field: bson.M{"$lte": int64(rps.MaxAmount) - amount}},
		bson.M{"$inc": bson.M{field: amount}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(rps.ErrAmountOverflow, "%s of %s", field, id)
	}
	return errors.Wrapf(err, "increment %s", coll.Name())
}

// Statement lists the most recent journal entries of an account, newest first.
func (s *MongoStore) Statement(ctx context.Context, account string, limit int) ([]models.Balance, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.db.Collection(journalCollection).Find(ctx, bson.M{"account": account}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "query statement")
	}
	defer cur.Close(ctx)

	var out []models.Balance
	for cur.Next(ctx) {
		var e journalEntry
		if err := cur.Decode(&e); err != nil {
			return nil, errors.Wrap(err, "decode statement entry")
		}
		b := models.Balance{
			Account:   e.Account,
			TType:     e.TType,
			TRef:      e.TRef,
			Status:    "verified",
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.CreatedAt,
		}
		if e.Amount >= 0 {
			b.Dr = models.ToMajor(uint64(e.Amount))
		} else {
			b.Cr = models.ToMajor(uint64(-e.Amount))
		}
		out = append(out, b)
	}
	return out, errors.Wrap(cur.Err(), "read statement")
}

func journalMongo(ctx context.Context, db *mongo.Database, account string, amount int64, ttype, ref string) error {
	_, err := db.Collection(journalCollection).InsertOne(ctx, journalEntry{
		Account:   account,
		TType:     ttype,
		Amount:    amount,
		TRef:      ref,
		CreatedAt: time.Now().UTC(),
	})
	return errors.Wrapf(err, "journal %s %s", ttype, ref)
}

func mongoWalletBalance(ctx context.Context, db *mongo.Database, account string) (uint64, error) {
	var doc struct {
		Balance int64 `bson:"balance"`
	}
	err := db.Collection(walletsCollection).FindOne(ctx, bson.M{"_id": account}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get wallet")
	}
	if doc.Balance < 0 {
		return 0, nil
	}
	return uint64(doc.Balance), nil
}
