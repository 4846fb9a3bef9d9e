// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/headline-sentiment/internal/api"
	"github.com/pdiddy/headline-sentiment/internal/pipeline"
	"github.com/pdiddy/headline-sentiment/internal/sentiment"
	"github.com/pdiddy/headline-sentiment/internal/trend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only HTTP API",
	Long: `Serve exposes stored headlines, trend series, live trend windows, cycle
state, and store statistics as JSON. With --schedule the pipeline also runs
in the same process and its latest report is served at /api/v1/cycle.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	serveCmd.Flags().Bool("schedule", false, "run pipeline cycles alongside the server")
	serveCmd.Flags().Duration("interval", 0, "time between cycles with --schedule (default scheduler.interval)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	schedule, _ := cmd.Flags().GetBool("schedule")
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval == 0 {
		interval = cfg.Scheduler.Interval
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	adapters, models, err := buildPipelineParts(newHTTPClient())
	if err != nil {
		return err
	}
	opts := api.Options{Models: sentiment.Names(models)}

	g, ctx := errgroup.WithContext(ctx)
	if schedule {
		runner := pipeline.NewRunner(st, *cfg, adapters, models)
		sched := pipeline.NewScheduler(runner, interval)
		opts.Tracker = runner.Tracker()
		opts.LastReport = sched.LastReport
		g.Go(func() error { return sched.Run(ctx) })
	} else {
		tracker := trend.NewTracker(st, cfg.Trend)
		if err := tracker.Restore(ctx, time.Now()); err != nil {
			zap.L().Warn("restoring live trend", zap.Error(err))
		}
		opts.Tracker = tracker
	}

	srv := api.New(st, cfg.Server, cfg.Trend, opts)
	g.Go(func() error { return srv.Serve(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
