package runner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/strategy"
)

// ReasonEndOfSeries 回测跑完整个序列且未触发强制平仓
const ReasonEndOfSeries = "end of series"

// Backtest 同步回放一个有限的历史序列，没有等待。
// 样本成交量原样传给引擎，没有成交量数据的序列由数据源填 model.UnlimitedVolume。
type Backtest struct {
	Engine *strategy.Engine
	Series []model.PriceSample
	Logger *zap.Logger
}

// Run 依次处理序列中的每个样本。任何错误都中止回放，因为后续样本无法弥补。
func (b *Backtest) Run(ctx context.Context) (model.Summary, error) {
	if b.Engine == nil {
		return model.Summary{}, errors.New("backtest: engine is required")
	}
	if len(b.Series) == 0 {
		return model.Summary{}, fmt.Errorf("%w: empty historical series", model.ErrFeedUnavailable)
	}
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("Instance", b.Engine.Name()), zap.String("Asset", b.Engine.Config().Asset))
	logger.Info("Backtest started", zap.Int("Samples", len(b.Series)))

	for i, s := range b.Series {
		if err := ctx.Err(); err != nil {
			return b.Engine.Summary(), err
		}
		_, err := b.Engine.Process(ctx, s)
		if errors.Is(err, model.ErrTerminated) {
			break
		}
		if err != nil {
			logger.Error("Backtest aborted", zap.Int("Tick", i+1), zap.Error(err))
			return b.Engine.Summary(), fmt.Errorf("backtest tick %d (%s): %w", i+1, s.Timestamp.Format("2006-01-02 15:04:05"), err)
		}
		if b.Engine.Terminated() {
			break
		}
	}

	sum := b.Engine.Summary()
	if !sum.Terminated {
		sum.Reason = ReasonEndOfSeries
	}
	logger.Info("Backtest finished", zap.Int("Ticks", sum.Ticks), zap.Int("Trades", sum.Trades), zap.String("Reason", sum.Reason))
	return sum, nil
}
