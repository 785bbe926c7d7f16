package service

import (
	"context"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/rps"
)

// GameService adapts the engine to the request and view types shared by
// the HTTP handlers and the broker.
type GameService struct {
	engine *rps.Engine
}

func NewGameService(engine *rps.Engine) *GameService {
	return &GameService{engine: engine}
}

func (s *GameService) CreateGame(ctx context.Context, caller string, req comm.CreateGameRequest) (comm.GameCreated, error) {
	id, err := s.engine.CreateGame(ctx, rps.Account(caller), rps.Account(req.Opponent), req.Bet)
	if err != nil {
		return comm.GameCreated{}, err
	}
	return comm.GameCreated{GameId: id}, nil
}

func (s *GameService) JoinGame(ctx context.Context, caller string, req comm.JoinGameRequest) (comm.GameView, error) {
	if err := s.engine.JoinGame(ctx, rps.Account(caller), req.GameId, req.Bet); err != nil {
		return comm.GameView{}, err
	}
	return s.GetGame(ctx, req.GameId)
}

func (s *GameService) CommitMove(ctx context.Context, caller string, req comm.CommitMoveRequest) (comm.GameView, error) {
	if err := s.engine.CommitMove(ctx, rps.Account(caller), req.GameId, req.Commitment); err != nil {
		return comm.GameView{}, err
	}
	return s.GetGame(ctx, req.GameId)
}

func (s *GameService) RevealMove(ctx context.Context, caller string, req comm.RevealMoveRequest) (comm.GameView, error) {
	if err := s.engine.RevealMove(ctx, rps.Account(caller), req.GameId, req.Move, req.Secret); err != nil {
		return comm.GameView{}, err
	}
	return s.GetGame(ctx, req.GameId)
}

func (s *GameService) ClaimTimeout(ctx context.Context, caller string, req comm.GameRequest) (comm.GameView, error) {
	if err := s.engine.ClaimTimeout(ctx, rps.Account(caller), req.GameId); err != nil {
		return comm.GameView{}, err
	}
	return s.GetGame(ctx, req.GameId)
}

func (s *GameService) GetGame(ctx context.Context, id uint64) (comm.GameView, error) {
	g, err := s.engine.GetGame(ctx, id)
	if err != nil {
		return comm.GameView{}, err
	}
	return comm.NewGameView(g), nil
}

func (s *GameService) Withdraw(ctx context.Context, caller string) (comm.Withdrawal, error) {
	amount, err := s.engine.Withdraw(ctx, rps.Account(caller))
	if err != nil {
		return comm.Withdrawal{}, err
	}
	return comm.Withdrawal{Account: caller, Amount: amount}, nil
}
