// Package cli 是 rsi-swap-bot 的命令行入口
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rsi-swap-bot/internal/service"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

type rootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg *service.Config
}

func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rsi-swap-bot",
		Short:         "RSI rebalancing bot for a single asset against USDC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&o.ConfigPath, "config", "config", "Config directory or file")
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := service.InitLoggerWithLevel(o.LogLevel); err != nil {
			return err
		}
		cfg, err := service.LoadConfig(o.ConfigPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}

	cmd.AddCommand(
		newLiveCmd(o),
		newBacktestCmd(o),
		newReportCmd(o),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rsi-swap-bot (%s)\n", Version)
		},
	})

	return cmd
}

func Execute() {
	err := NewRootCmd().Execute()
	_ = service.Logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
