// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/export"
	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/internal/trend"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show per-model mean polarity and agreement over time windows",
	Long: `Trend partitions [--from, --to) into windows of --window and reports, for
each window, the headline count, each model's mean polarity, and how far the
models diverge from one another.`,
	RunE: runTrend,
}

func init() {
	addTrendFlags(trendCmd)
	trendCmd.Flags().String("format", "table", "output format: table, json, yaml, or csv")
	rootCmd.AddCommand(trendCmd)
}

// addTrendFlags registers the window range flags shared with export.
func addTrendFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("window", 0, "window size (default trend.window)")
	cmd.Flags().String("from", "", "series start (RFC 3339 or YYYY-MM-DD; default 24 windows before --to)")
	cmd.Flags().String("to", "", "series end (RFC 3339 or YYYY-MM-DD; default end of the current window)")
}

func trendSeries(cmd *cobra.Command, st *store.Store) ([]types.TrendWindow, error) {
	size, _ := cmd.Flags().GetDuration("window")
	if size == 0 {
		size = cfg.Trend.Window
	}
	toStr, _ := cmd.Flags().GetString("to")
	fromStr, _ := cmd.Flags().GetString("from")
	to, err := parseDate("to", toStr)
	if err != nil {
		return nil, err
	}
	if to.IsZero() && size > 0 {
		to = time.Now().UTC().Truncate(size).Add(size)
	}
	from, err := parseDate("from", fromStr)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = to.Add(-24 * size)
	}
	return trend.NewAggregator(st, cfg.Trend).Series(cmd.Context(), from, to, size)
}

func runTrend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	cmd.SetContext(ctx)

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	windows, err := trendSeries(cmd, st)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "table" {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		return export.Trend(os.Stdout, f, windows)
	}

	fmt.Fprintf(os.Stdout, "%-17s  %5s  %9s  %s\n", "Window start", "Count", "Agreement", "Mean polarity")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, w := range windows {
		means := make([]string, 0, len(w.PerModelMeanPolarity))
		for _, m := range w.Models() {
			means = append(means, fmt.Sprintf("%s=%+.3f", m, w.PerModelMeanPolarity[m]))
		}
		fmt.Fprintf(os.Stdout, "%-17s  %5d  %9.3f  %s\n",
			w.WindowStart.Format("2006-01-02 15:04"), w.Count, w.AgreementScore, strings.Join(means, " "))
	}
	return nil
}
