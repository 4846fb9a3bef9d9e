// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/headline-sentiment/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run cycles on a timer until interrupted",
	Long: `Run starts a cycle immediately and then every scheduler.interval until
SIGINT or SIGTERM. A failed cycle is logged and the loop continues.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("interval", 0, "time between cycles (default scheduler.interval)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval == 0 {
		interval = cfg.Scheduler.Interval
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := newRunner(st)
	if err != nil {
		return err
	}
	return pipeline.NewScheduler(runner, interval).Run(ctx)
}
