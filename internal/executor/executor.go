package executor

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnconfirmed 交易已提交 (有 tx hash) 但未在超时内确认。交易仍可能上链，不能重新提交。
var ErrUnconfirmed = errors.New("swap submitted but not confirmed")

// SwapRequest 描述一次代币兑换
type SwapRequest struct {
	From               string  // 卖出的 token 符号，例如 USDC_BASE
	To                 string  // 买入的 token 符号
	Amount             float64 // 卖出数量 (人类可读单位)
	MaxSlippagePercent float64
}

func (r SwapRequest) String() string {
	return fmt.Sprintf("%.8f %s -> %s (slippage %.2f%%)", r.Amount, r.From, r.To, r.MaxSlippagePercent)
}

// Confirmation 是执行成功后的回执
type Confirmation struct {
	TxHash    string
	Simulated bool
	Attempts  int
}

// Executor 是交易执行器的通用接口，负责把交易意图变成真实 (或模拟) 的兑换
type Executor interface {
	// 阻塞直到兑换确认或失败
	ExecuteSwap(ctx context.Context, req SwapRequest) (Confirmation, error)
}

// BalanceChecker 查询钱包余额，仅用于启动前检查
type BalanceChecker interface {
	// token 余额 (人类可读单位)
	TokenBalance(ctx context.Context, wallet, symbol string) (float64, error)
	// 原生 gas 余额 (ETH)
	NativeBalance(ctx context.Context, wallet string) (float64, error)
}
