package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/tradelog"
)

func newReportCmd(o *rootOptions) *cobra.Command {
	var (
		instance string
		initial  float64
	)

	cmd := &cobra.Command{
		Use:   "report [trades.jsonl]",
		Short: "Replay a trade log and print the portfolio value after each trade",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			var (
				records []model.TradeRecord
				err     error
			)

			switch {
			case len(args) == 1:
				records, err = tradelog.ReadJSONLFile(args[0])
			case instance != "":
				bot, ok := cfg.Instances[instance]
				if !ok {
					return fmt.Errorf("unknown instance %q", instance)
				}
				if initial == 0 {
					initial = bot.InitialBalance
				}
				var log tradelog.TradeLog
				if log, err = openTradeLog(cfg, instance, bot); err != nil {
					return err
				}
				defer log.Close()
				records, err = log.Records(cmd.Context())
			default:
				return fmt.Errorf("give a trade log file or --instance")
			}
			if err != nil {
				return err
			}
			if initial <= 0 {
				return fmt.Errorf("--initial must be positive")
			}

			res, err := tradelog.Replay(records, initial)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), res, initial)
		},
	}

	cmd.Flags().StringVar(&instance, "instance", "", "Read the configured trade log of this instance")
	cmd.Flags().Float64Var(&initial, "initial", 0, "Initial USDC balance (default: instance InitialBalance)")
	return cmd
}

func writeReport(w io.Writer, res tradelog.ReplayResult, initial float64) error {
	if len(res.Points) == 0 {
		_, err := fmt.Fprintln(w, "No trades recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tPRICE\tUSDC\tASSET\tVALUE")
	for _, p := range res.Points {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.2f\t%.6f\t%.2f\n",
			p.Timestamp.Format("2006-01-02 15:04:05"), p.Action, p.Price, p.Quote, p.Asset, p.Value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	last := res.Points[len(res.Points)-1]
	_, err := fmt.Fprintf(w, "Trades: %d | Final USDC: %.2f | Final Asset: %.6f | Value @ last trade: %.2f | Net: %.2f\n",
		len(res.Points), res.Final.Quote, res.Final.Asset, last.Value, last.Value-initial)
	return err
}
