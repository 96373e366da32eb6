package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rsi-swap-bot/internal/api"
	"rsi-swap-bot/internal/executor"
	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/runner"
	"rsi-swap-bot/internal/service"
	"rsi-swap-bot/internal/tradelog"
	"rsi-swap-bot/pkg/id"
)

func newBacktestCmd(o *rootOptions) *cobra.Command {
	var (
		days      int
		csvPath   string
		asset     string
		instances []string
		tradesOut string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical prices through the trading engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			if asset != "" {
				cfg.Instances = map[string]service.BotConfig{asset: service.DefaultBotConfig(asset)}
				instances = nil
			}
			for name, inst := range cfg.Instances {
				if err := inst.Validate(); err != nil {
					return fmt.Errorf("instance %s: %w", name, err)
				}
			}
			names, err := selectInstances(cfg, instances)
			if err != nil {
				return err
			}
			if csvPath != "" && len(names) > 1 {
				return fmt.Errorf("--csv holds a single series; select one instance with --instance or --asset")
			}
			if days <= 0 {
				days = cfg.Feed.HistoryDays
			}

			ctx := cmd.Context()
			runID := id.New()
			var errs []error
			for _, n := range names {
				bot := cfg.Instances[n]
				series, err := loadSeries(ctx, cfg, bot.Asset, csvPath, days)
				if err != nil {
					errs = append(errs, fmt.Errorf("instance %s: %w", n, err))
					continue
				}
				sum, err := backtestOne(ctx, cfg, n, bot, series, runID, tradesOut)
				fmt.Fprintln(cmd.OutOrStdout(), sum.String())
				if err != nil {
					errs = append(errs, fmt.Errorf("instance %s: %w", n, err))
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Days of CoinGecko history to fetch (default: Feed.HistoryDays)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Read the series from a timestamp,price[,volume] CSV instead of CoinGecko")
	cmd.Flags().StringVar(&asset, "asset", "", "Backtest one asset with default parameters, ignoring configured instances")
	cmd.Flags().StringSliceVar(&instances, "instance", nil, "Instance names to backtest (default: all)")
	cmd.Flags().StringVar(&tradesOut, "trades", "", "Directory for backtest trade logs (JSONL, one file per instance)")
	return cmd
}

func loadSeries(ctx context.Context, cfg *service.Config, asset, csvPath string, days int) ([]model.PriceSample, error) {
	if csvPath != "" {
		return api.ReadCSVSeriesFile(csvPath)
	}
	return newCoinGecko(cfg).HistoricalSeries(ctx, asset, days)
}

// backtestOne 回测总是使用模拟执行器
func backtestOne(ctx context.Context, cfg *service.Config, name string, bot service.BotConfig, series []model.PriceSample, runID, tradesDir string) (model.Summary, error) {
	var log tradelog.TradeLog = tradelog.NewMemoryLog()
	logPath := "memory"
	if tradesDir != "" {
		jl, err := tradelog.OpenJSONL(tradelog.JSONLPath(tradesDir, "backtest_"+name))
		if err != nil {
			return model.Summary{Instance: name}, err
		}
		if err := jl.Clear(ctx); err != nil {
			_ = jl.Close()
			return model.Summary{Instance: name}, err
		}
		log, logPath = jl, jl.Path()
	}
	defer log.Close()

	e, err := newEngine(name, bot, cfg, executor.NewSimulatorExecutor(service.Logger.Sugar()), log, runID, nil)
	if err != nil {
		return model.Summary{Instance: name}, err
	}

	service.Logger.Info("Backtesting", zap.String("Instance", name), zap.Int("Samples", len(series)), zap.String("TradeLog", logPath))
	b := &runner.Backtest{Engine: e, Series: series, Logger: service.Logger}
	return b.Run(ctx)
}
