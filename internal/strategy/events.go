package strategy

import (
	"go.uber.org/zap"

	"rsi-swap-bot/internal/model"
)

// EventSink 接收引擎发布的结构化事件。实现必须可并发调用。
type EventSink interface {
	Publish(ev model.Event)
}

// NopSink 丢弃所有事件
type NopSink struct{}

func (NopSink) Publish(model.Event) {}

// MultiSink 把事件分发给多个 sink
type MultiSink []EventSink

func (m MultiSink) Publish(ev model.Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// ZapSink 把事件写成结构化日志
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (z *ZapSink) Publish(ev model.Event) {
	fields := []zap.Field{
		zap.String("Instance", ev.Instance),
		zap.String("Asset", ev.Asset),
		zap.Int("Tick", ev.Tick),
		zap.Time("SampleTime", ev.Timestamp),
	}

	switch ev.Kind {
	case model.EventTick:
		z.logger.Info("Tick",
			append(fields,
				zap.Float64("Price", ev.Price),
				zap.Float64("PortfolioValue", ev.PortfolioValue),
				zap.Float64("NetProfit", ev.NetProfit))...)

	case model.EventBaseline:
		z.logger.Info("Baseline price set", append(fields, zap.Float64("Price", ev.Price))...)

	case model.EventRSI:
		if ev.RSIReady {
			z.logger.Info("RSI", append(fields, zap.Float64("RSI", ev.RSI))...)
		} else {
			z.logger.Debug("Collecting RSI data", append(fields, zap.String("Detail", ev.Message))...)
		}

	case model.EventRule:
		z.logger.Debug("Rule evaluated",
			append(fields, zap.String("Rule", ev.Rule), zap.String("Detail", ev.Message))...)

	case model.EventTrade:
		if ev.Intent != nil {
			fields = append(fields,
				zap.String("Action", ev.Intent.Action.String()),
				zap.Float64("AssetAmount", ev.Intent.AssetAmount),
				zap.Float64("QuoteAmount", ev.Intent.QuoteAmount),
				zap.Float64("Price", ev.Intent.Price))
		}
		z.logger.Info("Trade executed", append(fields, zap.String("TxHash", ev.Message))...)

	case model.EventSkip:
		z.logger.Warn("Tick skipped",
			append(fields, zap.String("Rule", ev.Rule), zap.String("Detail", ev.Message), zap.Error(ev.Err))...)

	case model.EventTerminated:
		z.logger.Info("Engine terminated",
			append(fields,
				zap.String("Reason", ev.Message),
				zap.Float64("PortfolioValue", ev.PortfolioValue),
				zap.Float64("NetProfit", ev.NetProfit))...)

	default:
		z.logger.Debug("Event", append(fields, zap.String("Kind", string(ev.Kind)))...)
	}
}
