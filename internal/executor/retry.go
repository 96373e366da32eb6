package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
)

// RetryConfig 重试参数：每次失败后等待 Delay + [0, Jitter] 的随机时长
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	Jitter   time.Duration
}

// RetryExecutor 包装任意 Executor，重试耗尽后返回 ErrExecutionFailed。
// 只重试提交阶段的失败，ErrUnconfirmed 直接返回。
type RetryExecutor struct {
	inner  Executor
	cfg    RetryConfig
	logger *zap.SugaredLogger
}

func NewRetryExecutor(inner Executor, cfg RetryConfig, logger *zap.SugaredLogger) *RetryExecutor {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RetryExecutor{inner: inner, cfg: cfg, logger: logger}
}

func (r *RetryExecutor) ExecuteSwap(ctx context.Context, req SwapRequest) (Confirmation, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		conf, err := r.inner.ExecuteSwap(ctx, req)
		if err == nil {
			conf.Attempts = attempt
			return conf, nil
		}
		if errors.Is(err, ErrUnconfirmed) {
			// 已提交的交易可能仍会上链，重新提交会重复成交
			r.logger.Errorf("Swap submitted but unconfirmed, not retrying: %s: %v", req, err)
			return Confirmation{}, fmt.Errorf("%w: %s: %w", model.ErrExecutionFailed, req, err)
		}
		lastErr = err
		r.logger.Warnf("Swap attempt %d/%d failed: %s: %v", attempt, r.cfg.Attempts, req, err)

		if attempt == r.cfg.Attempts {
			break
		}

		wait := r.backoff()
		r.logger.Infof("Retrying in %s...", wait)
		select {
		case <-ctx.Done():
			return Confirmation{}, fmt.Errorf("%w: %s: %w", model.ErrExecutionFailed, req, ctx.Err())
		case <-time.After(wait):
		}
	}

	r.logger.Errorf("All %d swap attempts failed: %s", r.cfg.Attempts, req)
	return Confirmation{}, fmt.Errorf("%w: %s after %d attempts: %w", model.ErrExecutionFailed, req, r.cfg.Attempts, lastErr)
}

func (r *RetryExecutor) backoff() time.Duration {
	wait := r.cfg.Delay
	if r.cfg.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(r.cfg.Jitter) + 1))
	}
	return wait
}
