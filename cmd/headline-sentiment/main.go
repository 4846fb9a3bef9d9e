// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the headline-sentiment CLI.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/config"
	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/internal/secrets"
	"github.com/pdiddy/headline-sentiment/internal/sentiment"
	"github.com/pdiddy/headline-sentiment/internal/source"
	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded once per invocation by the root command.
var cfg *types.Config

var rootCmd = &cobra.Command{
	Use:   "headline-sentiment",
	Short: "Collect Bitcoin headlines, score their sentiment, and track the trend",
	Long: `headline-sentiment polls configured news sources for Bitcoin headlines,
stores each headline once, scores it with every configured sentiment model,
and aggregates the scores into time windows.

Run a single cycle with "cycle", loop with "run", or serve the read-only API
with "serve --schedule".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}

		cfgFile, _ := cmd.Flags().GetString("config")
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		config.ApplySecrets(c, s)
		if err := config.InitLogger(c.Log); err != nil {
			return err
		}
		if len(s) > 0 {
			zap.L().Debug("loaded secrets", zap.Strings("names", secrets.Names(s)))
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./headline-sentiment.yaml or ~/.config/headline-sentiment/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

func newHTTPClient() *httputil.Client {
	return httputil.NewClient(cfg.HTTP)
}

// buildPipelineParts constructs the enabled source adapters and models.
func buildPipelineParts(client *httputil.Client) ([]source.Adapter, []sentiment.Model, error) {
	adapters, err := source.FromConfigs(*cfg, client)
	if err != nil {
		return nil, nil, err
	}
	models, err := sentiment.FromConfigs(*cfg, client)
	if err != nil {
		return nil, nil, err
	}
	return adapters, models, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates. Empty input
// yields the zero time.
func parseDate(flag, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, eris.Errorf("--%s %q: want RFC 3339 or YYYY-MM-DD", flag, v)
	}
	return t, nil
}

// dateRange reads --from and --to, defaulting to the span back from now.
func dateRange(cmd *cobra.Command, span time.Duration) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := parseDate("from", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-span)
	}
	return from, to, nil
}
