package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"rsi-swap-bot/internal/api"
	"rsi-swap-bot/internal/executor"
	"rsi-swap-bot/internal/portfolio"
	"rsi-swap-bot/internal/runner"
	"rsi-swap-bot/internal/service"
	"rsi-swap-bot/internal/strategy"
	"rsi-swap-bot/internal/tradelog"
)

// selectInstances 按名字排序返回要运行的实例，names 为空时返回全部
func selectInstances(cfg *service.Config, names []string) ([]string, error) {
	if len(cfg.Instances) == 0 {
		return nil, fmt.Errorf("no instances configured")
	}
	if len(names) == 0 {
		for name := range cfg.Instances {
			names = append(names, name)
		}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if _, ok := cfg.Instances[n]; !ok {
			return nil, fmt.Errorf("unknown instance %q", n)
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func newCoinGecko(cfg *service.Config) *api.CoinGecko {
	return api.NewCoinGecko(
		api.CoinGeckoConfig{BaseURL: cfg.Feed.BaseURL, APIKey: cfg.Feed.APIKey},
		service.NewHTTPClient(cfg.Feed.Timeout),
		service.Logger,
	)
}

// newPriceFeed 创建实盘行情源。okx 模式下连接器在后台运行直到 ctx 取消。
func newPriceFeed(ctx context.Context, cfg *service.Config, assets []string) (runner.PriceFeed, error) {
	switch cfg.Feed.Source {
	case "okx":
		connector, err := api.NewConnector(cfg.Feed.WSURL, assets, cfg.Feed.StaleAfter, service.Logger)
		if err != nil {
			return nil, err
		}
		go connector.Start(ctx)
		return connector, nil
	default:
		return newCoinGecko(cfg), nil
	}
}

// newExecutor 返回执行器；gateway 模式同时返回余额查询能力用于启动检查
func newExecutor(cfg *service.Config) (executor.Executor, executor.BalanceChecker) {
	sugar := service.Logger.Sugar()
	if cfg.Execution.Mode != "gateway" {
		return executor.NewSimulatorExecutor(sugar), nil
	}

	gw := executor.NewGatewayExecutor(executor.GatewayConfig{
		BaseURL:        cfg.Execution.GatewayURL,
		APIKey:         cfg.Execution.APIKey,
		Wallet:         cfg.Execution.Wallet,
		ConfirmTimeout: cfg.Execution.ConfirmTimeout,
	}, service.NewHTTPClient(cfg.Feed.Timeout), sugar)

	retry := executor.NewRetryExecutor(gw, executor.RetryConfig{
		Attempts: cfg.Execution.MaxRetries,
		Delay:    cfg.Execution.RetryDelay,
		Jitter:   cfg.Execution.RetryJitter,
	}, sugar)
	return retry, gw
}

func openTradeLog(cfg *service.Config, name string, bot service.BotConfig) (tradelog.TradeLog, error) {
	return tradelog.Open(tradelog.Options{
		Type:     cfg.TradeLog.Type,
		Dir:      cfg.TradeLog.Dir,
		DBPath:   cfg.TradeLog.DBPath,
		Instance: name,
		Coin:     bot.Asset,
		Wallet:   cfg.Execution.Wallet,
	})
}

// newEngine 为一个实例组装账本、执行器、交易日志和事件日志。extra 非空时事件同时发给它。
func newEngine(name string, bot service.BotConfig, cfg *service.Config, exec executor.Executor, log tradelog.TradeLog, runID string, extra strategy.EventSink) (*strategy.Engine, error) {
	ledger, err := portfolio.NewLedger(bot.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", name, err)
	}
	logger := service.Logger.With(zap.String("Instance", name), zap.String("RunID", runID))

	var sink strategy.EventSink = strategy.NewZapSink(service.Logger)
	if extra != nil {
		sink = strategy.MultiSink{sink, extra}
	}

	e, err := strategy.NewEngine(bot, ledger, strategy.Deps{
		Name:     name,
		Wallet:   cfg.Execution.Wallet,
		RunID:    runID,
		Slippage: cfg.Execution.Slippage,
		Executor: exec,
		TradeLog: log,
		Sink:     sink,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", name, err)
	}
	return e, nil
}
