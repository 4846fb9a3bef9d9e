// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the headline store",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	models := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.EnabledModels() {
		models = append(models, m.Name)
	}
	unscored, err := st.Unscored(ctx, models)
	if err != nil {
		return err
	}
	state, err := st.LoadCycleState(ctx)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(map[string]any{"store": stats, "unscored": unscored, "cycle": state})
	}

	fmt.Fprintf(os.Stdout, "Driver:     %s\n", st.Driver())
	fmt.Fprintf(os.Stdout, "Headlines:  %d\n", stats.Headlines)
	if !stats.Oldest.IsZero() {
		fmt.Fprintf(os.Stdout, "Published:  %s to %s\n",
			stats.Oldest.Format("2006-01-02 15:04"), stats.Newest.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(os.Stdout, "Last cycle: %d", state.Cycle)
	if !state.LastPollAt.IsZero() {
		fmt.Fprintf(os.Stdout, " at %s", state.LastPollAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(os.Stdout)

	fmt.Fprintln(os.Stdout, "\nBy source:")
	for _, name := range sortedNames(stats.HeadlinesBySource) {
		fmt.Fprintf(os.Stdout, "  %-16s  %d\n", name, stats.HeadlinesBySource[name])
	}
	fmt.Fprintln(os.Stdout, "\nBy model (scored / unscored):")
	for _, name := range models {
		fmt.Fprintf(os.Stdout, "  %-16s  %d / %d%s\n", name, stats.ScoresByModel[name], unscored[name], failureNote(state.Models[name]))
	}
	return nil
}

func failureNote(s types.RunState) string {
	if s.ConsecutiveFailures == 0 {
		return ""
	}
	return fmt.Sprintf("  (%d consecutive failures: %s)", s.ConsecutiveFailures, s.LastError)
}

func sortedNames(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
