package service

import (
	"context"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/gamesvc/store"
	"github.com/avvvet/rps-services/internal/rps"
)

type BalanceService struct {
	engine  *rps.Engine
	wallets store.Wallets
}

func NewBalanceService(engine *rps.Engine, wallets store.Wallets) *BalanceService {
	return &BalanceService{engine: engine, wallets: wallets}
}

// GetBalance reports both the withdrawable winnings and the wallet funds
// of an account.
func (s *BalanceService) GetBalance(ctx context.Context, account string) (comm.BalanceData, error) {
	bal, err := s.engine.GetBalance(ctx, rps.Account(account))
	if err != nil {
		return comm.BalanceData{}, err
	}
	wallet, err := s.wallets.WalletBalance(ctx, account)
	if err != nil {
		return comm.BalanceData{}, err
	}
	return comm.BalanceData{Account: account, Balance: bal, Wallet: wallet}, nil
}
