package executor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rsi-swap-bot/pkg/id"
)

// SimulatorExecutor 实现了 Executor 接口，不与链交互，立即确认。
// 回测和未提供网关凭证的实盘都注入它，引擎永远不需要判断执行器是否存在。
type SimulatorExecutor struct {
	logger *zap.SugaredLogger

	mu    sync.Mutex
	swaps []SwapRequest

	// failures > 0 时接下来的 failures 次调用返回 failErr (测试用)
	failures int
	failErr  error
}

// NewSimulatorExecutor 构造函数
func NewSimulatorExecutor(logger *zap.SugaredLogger) *SimulatorExecutor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SimulatorExecutor{logger: logger}
}

// FailNext 让接下来的 n 次兑换失败
func (e *SimulatorExecutor) FailNext(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = n
	e.failErr = err
}

// ExecuteSwap 模拟兑换
func (e *SimulatorExecutor) ExecuteSwap(ctx context.Context, req SwapRequest) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failures > 0 {
		e.failures--
		err := e.failErr
		if err == nil {
			err = fmt.Errorf("simulated swap failure")
		}
		e.logger.Warnf("Sim swap rejected: %s: %v", req, err)
		return Confirmation{}, err
	}

	if req.Amount <= 0 {
		return Confirmation{}, fmt.Errorf("swap amount must be positive, got %v", req.Amount)
	}

	e.swaps = append(e.swaps, req)
	conf := Confirmation{TxHash: "sim-" + id.New(), Simulated: true, Attempts: 1}
	e.logger.Debugf("Sim SWAP FILLED: %s tx=%s", req, conf.TxHash)
	return conf, nil
}

// Swaps 返回所有已成交的兑换
func (e *SimulatorExecutor) Swaps() []SwapRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SwapRequest, len(e.swaps))
	copy(out, e.swaps)
	return out
}
