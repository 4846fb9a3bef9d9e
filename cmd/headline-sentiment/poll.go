// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/ingest"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch headlines from every enabled source once",
	Long: `Poll fetches every enabled source concurrently, canonicalizes the titles,
and stores headlines not seen before. A failing source is reported and does
not stop the others. Per-source intervals are ignored; use "cycle" for
interval-aware polling.`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().Bool("json", false, "output the ingest report as JSON")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	adapters, _, err := buildPipelineParts(newHTTPClient())
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		return eris.New("no sources enabled; add sources to the config file")
	}

	report, err := ingest.NewCoordinator(st, cfg.Ingest).PollAll(ctx, adapters)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printIngestReport(report)
	}
	if len(report.SourceErrors) == len(adapters) {
		return eris.Errorf("all %d source(s) failed", len(adapters))
	}
	return nil
}

func printIngestReport(r types.IngestReport) {
	names := make([]string, 0, len(r.PerSource))
	for name := range r.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(os.Stdout, "%-20s  %7s  %5s  %9s  %9s\n", "Source", "Fetched", "New", "Duplicate", "Malformed")
	for _, name := range names {
		t := r.PerSource[name]
		fmt.Fprintf(os.Stdout, "%-20s  %7d  %5d  %9d  %9d\n", name, t.Fetched, t.New, t.Duplicate, t.Malformed)
	}
	for _, name := range r.Skipped {
		fmt.Fprintf(os.Stdout, "%-20s  skipped (interval not elapsed)\n", name)
	}
	if r.HasFailures() {
		for _, name := range r.FailedSources() {
			fmt.Fprintf(os.Stdout, "%-20s  FAILED: %s\n", name, r.SourceErrors[name])
		}
	}
	fmt.Fprintf(os.Stdout, "\n%d stored (%d new, %d duplicate), %d malformed\n",
		r.Total(), r.NewCount, r.DuplicateCount, r.Malformed)
}
