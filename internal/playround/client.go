// Package playround drives one complete round through the game service
// HTTP API, acting as both players.
package playround

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/gamesvc/handlers"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Player is one side of a round. An empty Salt is replaced by a random one.
type Player struct {
	Account string
	Move    rps.Move
	Salt    string
}

type Round struct {
	Player1  Player
	Player2  Player
	Bet      uint64
	Withdraw bool // pull winnings into the wallets after the round
}

type Result struct {
	Game     comm.GameView               `json:"game"`
	Balances map[string]comm.BalanceData `json:"balances"`
	Withdrew map[string]uint64           `json:"withdrew,omitempty"`
}

// APIError is a non 2xx reply of the game service.
type APIError struct {
	Status int
	Reason string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("game service replied %d %s: %s", e.Status, e.Reason, e.Msg)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	auth    *jwtauth.JWTAuth
	tokens  map[string]string
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		auth:    handlers.NewAuth(secret),
		tokens:  make(map[string]string),
	}
}

func (c *Client) token(account string) (string, error) {
	if tok, ok := c.tokens[account]; ok {
		return tok, nil
	}
	tok, err := handlers.IssueToken(c.auth, account, time.Hour)
	if err != nil {
		return "", errors.Wrapf(err, "mint token for %s", account)
	}
	c.tokens[account] = tok
	return tok, nil
}

// do sends body as account and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path, account string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	tok, err := c.token(account)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	var env struct {
		Data   json.RawMessage `json:"data"`
		Error  string          `json:"error"`
		Reason string          `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Msg: "undecodable reply: " + err.Error()}
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Reason: env.Reason, Msg: env.Error}
	}
	if out != nil {
		return errors.Wrap(json.Unmarshal(env.Data, out), "decode reply")
	}
	return nil
}

// Play creates, joins, commits, reveals and optionally withdraws one round.
func (c *Client) Play(ctx context.Context, r Round) (*Result, error) {
	p1, p2 := r.Player1, r.Player2
	s1, err := salt(p1.Salt)
	if err != nil {
		return nil, err
	}
	s2, err := salt(p2.Salt)
	if err != nil {
		return nil, err
	}

	var created comm.GameCreated
	if err := c.do(ctx, http.MethodPost, "/v1/games", p1.Account, comm.CreateGameRequest{Opponent: p2.Account, Bet: r.Bet}, &created); err != nil {
		return nil, errors.Wrap(err, "create game")
	}
	id := created.GameId
	log.WithFields(log.Fields{"game": id, "player1": p1.Account, "player2": p2.Account, "bet": r.Bet}).Info("game created")

	if err := c.do(ctx, http.MethodPost, gamePath(id, "join"), p2.Account, map[string]uint64{"bet": r.Bet}, nil); err != nil {
		return nil, errors.Wrap(err, "join game")
	}

	for _, step := range []struct {
		p Player
		s rps.Secret
	}{{p1, s1}, {p2, s2}} {
		body := map[string]rps.Commitment{"commitment": rps.Commit(step.p.Move, step.s)}
		if err := c.do(ctx, http.MethodPost, gamePath(id, "commit"), step.p.Account, body, nil); err != nil {
			return nil, errors.Wrapf(err, "commit %s", step.p.Account)
		}
	}

	for _, step := range []struct {
		p Player
		s rps.Secret
	}{{p1, s1}, {p2, s2}} {
		body := comm.RevealMoveRequest{Move: step.p.Move, Secret: step.s}
		if err := c.do(ctx, http.MethodPost, gamePath(id, "reveal"), step.p.Account, body, nil); err != nil {
			return nil, errors.Wrapf(err, "reveal %s", step.p.Account)
		}
	}

	res := &Result{Balances: make(map[string]comm.BalanceData)}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/games/%d", id), p1.Account, nil, &res.Game); err != nil {
		return nil, errors.Wrap(err, "get game")
	}

	if r.Withdraw {
		res.Withdrew = make(map[string]uint64)
		for _, p := range []Player{p1, p2} {
			var w comm.Withdrawal
			err := c.do(ctx, http.MethodPost, "/v1/withdraw", p.Account, nil, &w)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Reason == "no_funds" {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "withdraw %s", p.Account)
			}
			res.Withdrew[p.Account] = w.Amount
		}
	}

	for _, p := range []Player{p1, p2} {
		var bal comm.BalanceData
		if err := c.do(ctx, http.MethodGet, "/v1/balances/"+p.Account, p.Account, nil, &bal); err != nil {
			return nil, errors.Wrapf(err, "balance %s", p.Account)
		}
		res.Balances[p.Account] = bal
	}
	return res, nil
}

func gamePath(id uint64, action string) string {
	return fmt.Sprintf("/v1/games/%d/%s", id, action)
}

func salt(s string) (rps.Secret, error) {
	if s == "" {
		s = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return rps.ParseSecret(s)
}
