// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/sentiment"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score pending headlines with every enabled model",
	Long: `Score selects headlines missing a score from at least one enabled model
and fills the missing cells. Transient model failures are retried; a model
that keeps failing is skipped for the rest of the pass. Failed cells stay
pending for the next run.`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().Int("limit", 0, "maximum headlines to score (0 = scoring.batch_limit)")
	scoreCmd.Flags().Bool("json", false, "output the score report as JSON")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		cfg.Scoring.BatchLimit = limit
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	_, models, err := buildPipelineParts(newHTTPClient())
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return eris.New("no models enabled")
	}

	engine := sentiment.NewEngine(st, cfg.Scoring)
	report, err := engine.ScorePending(ctx, models)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(report)
	}
	printScoreReport(report, engine.BreakerStates())
	return nil
}

func printScoreReport(r types.ScoreReport, breakers map[string]string) {
	fmt.Fprintf(os.Stdout, "%d headline(s) pending, %d score(s) written\n", r.Pending, r.ScoredCount)
	if !r.HasFailures() {
		return
	}

	byModel := r.ErrorsByModel()
	models := make([]string, 0, len(byModel))
	for m := range byModel {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		fmt.Fprintf(os.Stdout, "  %-16s  %d failed cell(s), breaker %s\n", m, byModel[m], breakers[m])
	}
}
