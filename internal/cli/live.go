package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rsi-swap-bot/internal/executor"
	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/runner"
	"rsi-swap-bot/internal/service"
	"rsi-swap-bot/internal/strategy"
	"rsi-swap-bot/internal/tradelog"
	"rsi-swap-bot/pkg/id"
)

func newLiveCmd(o *rootOptions) *cobra.Command {
	var (
		interactive bool
		instances   []string
		interval    string
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Trade live until a forced exit or interrupt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg

			if interactive {
				name, bot, err := promptLive(NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cfg)
				if err != nil {
					return err
				}
				cfg.Instances = map[string]service.BotConfig{name: bot}
				instances = nil
			}
			if interval != "" {
				d, err := service.ParseIntervalDuration(interval)
				if err != nil {
					return fmt.Errorf("bad --interval: %w", err)
				}
				for name, inst := range cfg.Instances {
					inst.SampleInterval = d
					cfg.Instances[name] = inst
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			names, err := selectInstances(cfg, instances)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exec, checker := newExecutor(cfg)
			if checker != nil {
				var required float64
				for _, n := range names {
					required += cfg.Instances[n].InitialBalance
				}
				if err := executor.Preflight(ctx, checker, cfg.Execution.Wallet, required, cfg.Execution.MinGasBalance); err != nil {
					return err
				}
			}

			assets := make([]string, 0, len(names))
			for _, n := range names {
				assets = append(assets, cfg.Instances[n].Asset)
			}
			feed, err := newPriceFeed(ctx, cfg, assets)
			if err != nil {
				return err
			}

			runID := id.New()
			service.Logger.Info("Starting live run",
				zap.String("RunID", runID),
				zap.Strings("Instances", names),
				zap.String("Feed", cfg.Feed.Source),
				zap.String("Execution", cfg.Execution.Mode))

			// 先全部初始化，任何实例失败都不启动
			type pipeline struct {
				name   string
				engine *strategy.Engine
				log    tradelog.TradeLog
			}
			console := newConsoleSink(cmd.OutOrStdout())
			pipelines := make([]pipeline, 0, len(names))
			defer func() {
				for _, p := range pipelines {
					_ = p.log.Close()
				}
			}()
			for _, n := range names {
				bot := cfg.Instances[n]
				log, err := openTradeLog(cfg, n, bot)
				if err != nil {
					return fmt.Errorf("instance %s: %w", n, err)
				}
				pipelines = append(pipelines, pipeline{name: n, log: log})
				if err := log.Clear(ctx); err != nil {
					return fmt.Errorf("instance %s: clear trade log: %w", n, err)
				}
				e, err := newEngine(n, bot, cfg, exec, log, runID, console)
				if err != nil {
					return err
				}
				pipelines[len(pipelines)-1].engine = e
			}

			summaries := make([]model.Summary, len(pipelines))
			errs := make([]error, len(pipelines))
			var wg sync.WaitGroup
			for i, p := range pipelines {
				i, p := i, p
				wg.Add(1)
				go func() {
					defer wg.Done()
					l := &runner.Live{
						Engine:   p.engine,
						Feed:     feed,
						Interval: cfg.Instances[p.name].SampleInterval,
						Logger:   service.Logger,
					}
					summaries[i], errs[i] = l.Run(ctx)
					if errs[i] != nil {
						errs[i] = fmt.Errorf("instance %s: %w", p.name, errs[i])
					}
				}()
			}
			wg.Wait()

			out := cmd.OutOrStdout()
			for _, s := range summaries {
				fmt.Fprintln(out, s.String())
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for wallet, balances and asset instead of reading instances from config")
	cmd.Flags().StringSliceVar(&instances, "instance", nil, "Instance names to run (default: all)")
	cmd.Flags().StringVar(&interval, "interval", "", "Override every instance's sample interval, e.g. 30m, 1h, 1d")
	return cmd
}
