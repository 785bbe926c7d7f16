package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/gamesvc/service"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of *nats.Conn the broker needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Broker struct {
	Conn           Publisher
	GameService    *service.GameService
	BalanceService *service.BalanceService
	Timeout        time.Duration
}

func NewBroker(conn Publisher, gameService *service.GameService, balanceService *service.BalanceService) *Broker {
	return &Broker{
		Conn:           conn,
		GameService:    gameService,
		BalanceService: balanceService,
		Timeout:        10 * time.Second,
	}
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	rsp := b.Dispatch(msgNat.Data)
	if rsp == nil {
		return
	}

	payload, err := json.Marshal(rsp)
	if err != nil {
		log.Errorf("Error marshal response %s", err)
		return
	}
	b.Publish(comm.SubjectGameService, payload)
}

// Dispatch runs one socket command and returns the "<type>-response"
// message for it. Undecodable envelopes and unknown types yield nil.
func (b *Broker) Dispatch(raw []byte) *comm.WSMessage {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(raw, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
	defer cancel()

	var (
		data interface{}
		err  error
	)

	switch msg.Type {
	case "create-game":
		var req comm.CreateGameRequest
		if err = decode(msg.Data, &req); err == nil {
			data, err = b.GameService.CreateGame(ctx, msg.Caller, req)
		}
	case "join-game":
		var req comm.JoinGameRequest
		if err = decode(msg.Data, &req); err == nil {
			data, err = b.GameService.JoinGame(ctx, msg.Caller, req)
		}
	case "commit-move":
		var req comm.CommitMoveRequest
		if err = decode(msg.Data, &req); err == nil {
			data, err = b.GameService.CommitMove(ctx, msg.Caller, req)
		}
	case "reveal-move":
		var req comm.RevealMoveRequest
		if err = decode(msg.Data, &req); err == nil {
			data, err = b.GameService.RevealMove(ctx, msg.Caller, req)
		}
	case "claim-timeout":
		var req comm.GameRequest
		if err = decode(msg.Data, &req); err == nil {
			data, err = b.GameService.ClaimTimeout(ctx, msg.Caller, req)
		}
	case "get-game":
		var req comm.GameRequest
		if err = decode(msg.Data, &req); err == nil {
			data, err = b.GameService.GetGame(ctx, req.GameId)
		}
	case "get-balance":
		req := comm.BalanceRequest{Account: msg.Caller}
		if err = decode(msg.Data, &req); err == nil {
			if req.Account == "" {
				req.Account = msg.Caller
			}
			data, err = b.BalanceService.GetBalance(ctx, req.Account)
		}
	case "withdraw":
		data, err = b.GameService.Withdraw(ctx, msg.Caller)
	default:
		log.Warnf("unknown message type %q from socket %s", msg.Type, msg.SocketId)
		return nil
	}

	if err != nil && service.ErrorCode(err) == "internal" {
		log.WithFields(log.Fields{"type": msg.Type, "caller": msg.Caller, "error": err}).Error("command failed")
	}

	result, merr := json.Marshal(service.Result(data, err))
	if merr != nil {
		log.Errorf("Error marshal result %s", merr)
		return nil
	}

	return &comm.WSMessage{
		Type:     msg.Type + "-response",
		Data:     result,
		SocketId: msg.SocketId,
		Caller:   msg.Caller,
	}
}

// decode tolerates an empty payload so commands like "withdraw" can be
// sent without data.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		if errors.Is(err, rps.ErrInvalidMove) {
			return err
		}
		return errors.Wrapf(service.ErrBadRequest, "decode %T: %v", v, err)
	}
	return nil
}

// consume message from socket service (Queue)
func (b *Broker) QueueSubscribSocketService(nc *nats.Conn, queueGroup string) (*nats.Subscription, error) {
	return nc.QueueSubscribe(comm.SubjectSocketService, queueGroup, b.handleMessage)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
