// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/pipeline"
	"github.com/pdiddy/headline-sentiment/internal/store"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one full poll, score, and trend cycle",
	Long: `Cycle loads the saved cycle state, polls the sources whose interval has
elapsed, scores pending headlines, folds changes into the trend windows,
and saves the new state.`,
	RunE: runCycle,
}

func init() {
	cycleCmd.Flags().Bool("json", false, "output the cycle report as JSON")
	rootCmd.AddCommand(cycleCmd)
}

func newRunner(st *store.Store) (*pipeline.Runner, error) {
	adapters, models, err := buildPipelineParts(newHTTPClient())
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(st, *cfg, adapters, models), nil
}

func runCycle(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := newRunner(st)
	if err != nil {
		return err
	}
	state, err := st.LoadCycleState(ctx)
	if err != nil {
		return err
	}

	_, report, err := runner.RunCycle(ctx, state)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(report)
	}
	fmt.Fprintf(os.Stdout, "Cycle %d (%s) took %s\n\n", report.Cycle, report.CycleID,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	printIngestReport(report.Ingest)
	fmt.Println()
	printScoreReport(report.Score, report.Breakers)
	fmt.Fprintf(os.Stdout, "%d change(s) folded into the live trend\n", report.TrendChanges)
	return nil
}
