// Package paysvc books wallet deposits requested over NATS.
package paysvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/gamesvc/models"
	"github.com/avvvet/rps-services/internal/gamesvc/store"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Service struct {
	Wallets store.Wallets
	Now     func() time.Time
	Timeout time.Duration
}

func NewService(wallets store.Wallets) *Service {
	return &Service{Wallets: wallets, Now: time.Now, Timeout: 60 * time.Second}
}

// Subscribe serves payment.service. Requests sent with a reply subject get
// the response there; requests carrying a socket id are also answered
// through the socket service.
func (s *Service) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(comm.SubjectPaymentService, func(m *nats.Msg) {
		rsp := s.Handle(m.Data)
		if rsp == nil {
			return
		}
		payload, err := json.Marshal(rsp)
		if err != nil {
			log.Errorf("Error marshaling WSMessage: %s", err)
			return
		}
		if m.Reply != "" {
			if err := m.Respond(payload); err != nil {
				log.Errorf("respond %s: %v", rsp.Type, err)
			}
		}
		if rsp.SocketId != "" {
			if err := nc.Publish(comm.SubjectGameService, payload); err != nil {
				log.Errorf("Error publishing to topic %s: %s", comm.SubjectGameService, err)
			}
		}
	})
}

// Handle runs one payment message and returns its response.
func (s *Service) Handle(data []byte) *comm.WSMessage {
	var ws comm.WSMessage
	if err := json.Unmarshal(data, &ws); err != nil {
		log.Errorf("invalid WSMessage: %v", err)
		return nil
	}

	var res interface{}
	switch ws.Type {
	case "deposit":
		res = s.deposit(ws)
	case "statement":
		res = s.statement(ws)
	default:
		log.Warnf("unknown message type: %s", ws.Type)
		return nil
	}

	payload, err := json.Marshal(res)
	if err != nil {
		log.Errorf("unable to marshal %s response: %v", ws.Type, err)
		return nil
	}
	return &comm.WSMessage{
		Type:     ws.Type + "-response",
		Data:     payload,
		SocketId: ws.SocketId,
		Caller:   ws.Caller,
	}
}

func (s *Service) deposit(ws comm.WSMessage) comm.DepositRes {
	var req comm.DepositRequest
	if err := json.Unmarshal(ws.Data, &req); err != nil || req.Account == "" || req.Amount == 0 || req.Reference == "" {
		log.Errorf("invalid DepositRequest: %v", err)
		return comm.DepositRes{
			Status:    "invalid-request",
			Message:   "account, amount and reference are required",
			Timestamp: s.Now().Unix(),
		}
	}

	if req.Amount > rps.MaxAmount {
		return comm.DepositRes{
			Status:    "invalid-request",
			Message:   "amount is too large",
			Timestamp: s.Now().Unix(),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	balance, err := s.Wallets.Deposit(ctx, req.Account, req.Amount, req.Reference)
	if errors.Is(err, rps.ErrAmountOverflow) {
		return comm.DepositRes{
			Status:    "invalid-request",
			Message:   "deposit would exceed the wallet limit",
			Timestamp: s.Now().Unix(),
		}
	}
	if errors.Is(err, store.ErrDuplicateReference) {
		return comm.DepositRes{
			Status:    "duplicate",
			Message:   "This reference number has already been used",
			Timestamp: s.Now().Unix(),
		}
	}
	if err != nil {
		log.WithFields(log.Fields{"account": req.Account, "ref": req.Reference, "error": err}).Error("deposit failed")
		return comm.DepositRes{
			Status:    "server-error",
			Message:   "Failed to process deposit. Please try again",
			Timestamp: s.Now().Unix(),
		}
	}

	log.WithFields(log.Fields{"account": req.Account, "amount": req.Amount, "ref": req.Reference}).Info("deposit booked")
	return comm.DepositRes{
		Status:    "success",
		Message:   "Deposit processed successfully",
		Balance:   models.ToMajor(balance).StringFixed(2),
		Timestamp: s.Now().Unix(),
	}
}

func (s *Service) statement(ws comm.WSMessage) comm.StatementRes {
	var req comm.StatementRequest
	if err := json.Unmarshal(ws.Data, &req); err != nil || req.Account == "" {
		return comm.StatementRes{Status: "invalid-request", Message: "account is required", Timestamp: s.Now().Unix()}
	}

	journal, ok := s.Wallets.(store.Journal)
	if !ok {
		return comm.StatementRes{Status: "unsupported", Message: "backend keeps no journal", Timestamp: s.Now().Unix()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	entries, err := journal.Statement(ctx, req.Account, req.Limit)
	if err != nil {
		log.WithFields(log.Fields{"account": req.Account, "error": err}).Error("statement failed")
		return comm.StatementRes{Status: "server-error", Message: "Failed to load statement", Timestamp: s.Now().Unix()}
	}
	return comm.StatementRes{Status: "success", Entries: entries, Timestamp: s.Now().Unix()}
}
