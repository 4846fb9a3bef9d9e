// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/market"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Fetch daily BTC closes into the store",
	Long: `Prices downloads one close per UTC day from the market chart API
(market.base_url) for the last --days days and upserts them into the
store for use by "correlate".`,
	RunE: runPrices,
}

func init() {
	pricesCmd.Flags().Int("days", 30, "days of history to fetch (max 365)")
	pricesCmd.Flags().Bool("json", false, "output the fetched prices as JSON")
	rootCmd.AddCommand(pricesCmd)
}

func runPrices(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	days, _ := cmd.Flags().GetInt("days")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	points, err := market.Sync(ctx, market.NewClient(cfg.Market, newHTTPClient()), st, days)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(points)
	}
	for _, p := range points {
		fmt.Fprintf(os.Stdout, "%s  %12.2f\n", p.Day.Format("2006-01-02"), p.USD)
	}
	fmt.Fprintf(os.Stdout, "\n%d day(s) stored\n", len(points))
	return nil
}
