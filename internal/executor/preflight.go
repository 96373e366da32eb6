package executor

import (
	"context"
	"fmt"

	"rsi-swap-bot/internal/model"
)

// Preflight 实盘启动前检查钱包余额：报价 token 不少于计划投入的资金，原生 gas 不少于 minGas
func Preflight(ctx context.Context, checker BalanceChecker, wallet string, required, minGas float64) error {
	quote, err := checker.TokenBalance(ctx, wallet, model.QuoteToken)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	if quote < required {
		return fmt.Errorf("%w: %s balance %.6f is below required %.6f", model.ErrInsufficientFunds, model.QuoteToken, quote, required)
	}

	gas, err := checker.NativeBalance(ctx, wallet)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	if gas < minGas {
		return fmt.Errorf("%w: gas balance %.6f ETH is below %.6f ETH", model.ErrInsufficientFunds, gas, minGas)
	}
	return nil
}
