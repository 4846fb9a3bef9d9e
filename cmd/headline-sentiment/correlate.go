// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/market"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Correlate daily sentiment with BTC daily returns",
	Long: `Correlate computes, per model and lag, the Pearson coefficient between the
daily mean polarity and the price return that many days later, with its
two-sided p-value and how often a bullish day preceded a rising price.
Lags default to market.lags (same day and next day). Prices come from the
store; fetch them first with "prices".`,
	RunE: runCorrelate,
}

func init() {
	correlateCmd.Flags().String("from", "", "first day (RFC 3339 or YYYY-MM-DD; default 30 days ago)")
	correlateCmd.Flags().String("to", "", "end of range (RFC 3339 or YYYY-MM-DD; default now)")
	correlateCmd.Flags().IntSlice("lag", nil, "lag in days, repeatable (default market.lags)")
	correlateCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(correlateCmd)
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	from, to, err := dateRange(cmd, 30*24*time.Hour)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	lags := cfg.Market.Lags
	if cmd.Flags().Changed("lag") {
		lags, _ = cmd.Flags().GetIntSlice("lag")
	}

	results, err := market.Correlate(ctx, st, from, to, lags)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No scored headlines in range.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-16s  %3s  %4s  %9s  %7s  %8s\n", "Model", "Lag", "Days", "Pearson r", "p", "Accuracy")
	for _, c := range results {
		r, p, acc := "n/a", "n/a", "n/a"
		if c.Coefficient != nil {
			r = fmt.Sprintf("%+.3f", *c.Coefficient)
			p = fmt.Sprintf("%.3f", *c.PValue)
			if c.Significant {
				p += "*"
			}
		}
		if c.Accuracy != nil {
			acc = fmt.Sprintf("%.0f%%", *c.Accuracy*100)
		}
		fmt.Fprintf(os.Stdout, "%-16s  %3d  %4d  %9s  %7s  %8s\n", c.Model, c.Lag, c.N, r, p, acc)
	}
	fmt.Fprintf(os.Stdout, "\n* p < %.2f\n", market.SignificanceLevel)
	return nil
}
