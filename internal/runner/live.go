// Package runner 提供驱动决策引擎的两种方式：实盘轮询和历史回放
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/service"
	"rsi-swap-bot/internal/strategy"
)

// PriceFeed 是实盘行情能力 (CoinGecko 或 OKX websocket 缓存)
type PriceFeed interface {
	CurrentPrice(ctx context.Context, asset string) (model.PriceSample, error)
}

// Live 按固定间隔轮询行情并驱动引擎。一次只处理一个样本。
type Live struct {
	Engine   *strategy.Engine
	Feed     PriceFeed
	Interval time.Duration
	Logger   *zap.Logger
}

// Run 立即取一次价格，之后每 Interval 一次，直到引擎终止或 ctx 取消。
// 可恢复的错误 (行情不可用、非法价格、执行失败) 只跳过当前 tick。
func (l *Live) Run(ctx context.Context) (model.Summary, error) {
	if l.Engine == nil || l.Feed == nil {
		return model.Summary{}, errors.New("live: engine and feed are required")
	}
	if l.Interval <= 0 {
		return model.Summary{}, fmt.Errorf("live: interval must be positive, got %s", l.Interval)
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	asset := l.Engine.Config().Asset
	logger = logger.With(zap.String("Instance", l.Engine.Name()), zap.String("Asset", asset))
	logger.Info("Live run started", zap.String("Interval", service.FormatInterval(l.Interval)))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stop requested")
			l.Engine.Stop()
			return l.Engine.Summary(), nil
		case <-timer.C:
		}

		if err := l.tick(ctx, asset, logger); err != nil {
			l.Engine.Stop()
			return l.Engine.Summary(), err
		}
		if l.Engine.Terminated() {
			return l.Engine.Summary(), nil
		}
		timer.Reset(l.Interval)
	}
}

func (l *Live) tick(ctx context.Context, asset string, logger *zap.Logger) error {
	sample, err := l.Feed.CurrentPrice(ctx, asset)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("Price fetch failed, skipping tick", zap.Error(err))
		return nil
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	_, err = l.Engine.Process(ctx, sample)
	switch {
	case err == nil, errors.Is(err, model.ErrTerminated):
		return nil
	case model.IsTickRecoverable(err):
		logger.Warn("Tick skipped", zap.Error(err))
		return nil
	default:
		logger.Error("Fatal tick error", zap.Error(err))
		return err
	}
}
