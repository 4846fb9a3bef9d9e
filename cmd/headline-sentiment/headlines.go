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
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var headlinesCmd = &cobra.Command{
	Use:   "headlines",
	Short: "List stored headlines with their scores",
	Long: `Headlines lists stored headlines published in [--from, --to), oldest
first unless --newest is set. Filter by --source or by --model to keep only
headlines that model has scored.`,
	RunE: runHeadlines,
}

func init() {
	addQueryFlags(headlinesCmd)
	headlinesCmd.Flags().Int("limit", 50, "maximum headlines to list (0 = no limit)")
	headlinesCmd.Flags().Bool("newest", false, "list newest first")
	headlinesCmd.Flags().String("format", "table", "output format: table, json, yaml, or csv")
	rootCmd.AddCommand(headlinesCmd)
}

// addQueryFlags registers the headline filter flags shared with export.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "published at or after (RFC 3339 or YYYY-MM-DD; default 7 days ago)")
	cmd.Flags().String("to", "", "published before (RFC 3339 or YYYY-MM-DD; default now)")
	cmd.Flags().String("source", "", "only headlines from this source")
	cmd.Flags().String("model", "", "only headlines scored by this model")
}

func queryFromFlags(cmd *cobra.Command) (store.Query, error) {
	from, to, err := dateRange(cmd, 7*24*time.Hour)
	if err != nil {
		return store.Query{}, err
	}
	q := store.Query{From: from, To: to}
	q.Source, _ = cmd.Flags().GetString("source")
	q.Model, _ = cmd.Flags().GetString("model")
	if cmd.Flags().Lookup("limit") != nil {
		q.Limit, _ = cmd.Flags().GetInt("limit")
	}
	if cmd.Flags().Lookup("newest") != nil {
		q.Newest, _ = cmd.Flags().GetBool("newest")
	}
	return q, nil
}

func runHeadlines(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	q, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hs, err := st.Headlines(ctx, q)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "table" {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		return export.Headlines(os.Stdout, f, hs)
	}

	if len(hs) == 0 {
		fmt.Println("No headlines found.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-20s  %-14s  %-60s  %s\n", "Published", "Source", "Title", "Scores")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, h := range hs {
		fmt.Fprintf(os.Stdout, "%-20s  %-14s  %-60s  %s\n",
			h.PublishedAt.Format("2006-01-02 15:04"), clip(h.Source, 14), clip(h.Title, 60), scoreSummary(h))
	}
	fmt.Fprintf(os.Stdout, "\n%d headline(s)\n", len(hs))
	return nil
}

func scoreSummary(h types.Headline) string {
	if len(h.Scores) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(h.Scores))
	for _, m := range h.ScoredModels() {
		parts = append(parts, fmt.Sprintf("%s=%+.2f", m, h.Scores[m].Polarity))
	}
	return strings.Join(parts, " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
