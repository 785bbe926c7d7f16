package comm

import (
	"encoding/json"
	"time"

	"github.com/avvvet/rps-services/internal/gamesvc/models"
	"github.com/avvvet/rps-services/internal/rps"
)

// WSMessage is the envelope exchanged between web clients, the socket
// service and the game service. Caller is stamped by the socket service
// from the verified token and is never taken from the client.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "create-game", "reveal-move"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
	Caller   string          `json:"caller,omitempty"`
}

type CreateGameRequest struct {
	Opponent string `json:"opponent"`
	Bet      uint64 `json:"bet"`
}

type JoinGameRequest struct {
	GameId uint64 `json:"game_id"`
	Bet    uint64 `json:"bet"`
}

type CommitMoveRequest struct {
	GameId     uint64         `json:"game_id"`
	Commitment rps.Commitment `json:"commitment"`
}

type RevealMoveRequest struct {
	GameId uint64     `json:"game_id"`
	Move   rps.Move   `json:"move"`
	Secret rps.Secret `json:"secret"`
}

type GameRequest struct {
	GameId uint64 `json:"game_id"`
}

type BalanceRequest struct {
	Account string `json:"account"`
}

// GameView is the public representation of a game record.
type GameView struct {
	ID         uint64         `json:"id"`
	Player1    string         `json:"player1"`
	Player2    string         `json:"player2"`
	Bet        uint64         `json:"bet"`
	Pot        uint64         `json:"pot"`
	State      string         `json:"state"`
	StateCode  uint8          `json:"state_code"`
	Commit1    rps.Commitment `json:"commit1"`
	Commit2    rps.Commitment `json:"commit2"`
	P1Move     string         `json:"p1_move"`
	P2Move     string         `json:"p2_move"`
	P1Revealed bool           `json:"p1_revealed"`
	P2Revealed bool           `json:"p2_revealed"`
	Outcome    string         `json:"outcome"`
	Winner     string         `json:"winner,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func NewGameView(g *rps.Game) GameView {
	return GameView{
		ID:         g.ID,
		Player1:    string(g.Player1),
		Player2:    string(g.Player2),
		Bet:        g.Bet,
		Pot:        g.Pot(),
		State:      g.State.String(),
		StateCode:  uint8(g.State),
		Commit1:    g.Commit1,
		Commit2:    g.Commit2,
		P1Move:     g.P1Move.String(),
		P2Move:     g.P2Move.String(),
		P1Revealed: g.P1Revealed,
		P2Revealed: g.P2Revealed,
		Outcome:    g.Outcome.String(),
		Winner:     string(g.Winner()),
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

type GameCreated struct {
	GameId uint64 `json:"game_id"`
}

type BalanceData struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"` // withdrawable winnings
	Wallet  uint64 `json:"wallet"`  // available wallet funds
}

type Withdrawal struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Result is the payload of every "<type>-response" message.
type Result struct {
	Status bool            `json:"status"`
	Code   string          `json:"code,omitempty"` // error code, e.g. "commitment_mismatch"
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// GameEvent is published on the events subject after every committed
// transition.
type GameEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	GameId  uint64    `json:"game_id"`
	Account string    `json:"account,omitempty"`
	Amount  uint64    `json:"amount,omitempty"`
	State   string    `json:"state"`
	Outcome string    `json:"outcome"`
	Winner  string    `json:"winner,omitempty"`
	At      time.Time `json:"at"`
}

type WatchGame struct {
	GameId uint64 `json:"game_id"`
}

type DepositRequest struct {
	Account   string `json:"account"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
}

type StatementRequest struct {
	Account string `json:"account"`
	Limit   int    `json:"limit"`
}

type StatementRes struct {
	Status    string           `json:"status"`
	Message   string           `json:"message,omitempty"`
	Entries   []models.Balance `json:"entries"`
	Timestamp int64            `json:"timestamp"`
}

type DepositRes struct {
	Status    string `json:"status"` // "success", "duplicate", "invalid-request", "server-error"
	Message   string `json:"message"`
	Balance   string `json:"balance,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NATS subjects.
const (
	SubjectSocketService  = "socket.service"  // client commands, socket -> game
	SubjectGameService    = "game.service"    // command results, game -> socket
	SubjectEvents         = "rps.events"      // committed transitions, game -> socket
	SubjectPaymentService = "payment.service" // deposit requests, request/reply
)
