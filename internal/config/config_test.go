// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(orig) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, types.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "data/headlines.db", cfg.Store.Path)
	assert.Equal(t, 24*time.Hour, cfg.Ingest.Bucket)
	assert.Equal(t, types.DedupGlobal, cfg.Ingest.DedupScope)
	assert.Equal(t, 300, cfg.Ingest.MaxTitleRunes)
	assert.Equal(t, 30*time.Second, cfg.Scoring.CallTimeout)
	assert.Equal(t, time.Hour, cfg.Trend.Window)
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, types.ModelLexicon, cfg.Models[0].Kind)
	assert.Equal(t, []int{0, 1}, cfg.Market.Lags)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  path: /tmp/h.db
ingest:
  bucket: 1h
  concurrency: 2
log:
  level: debug
market:
  lags: [0, 3]
sources:
  - name: coindesk
    kind: html
    url: https://www.coindesk.com/
    interval: 30m
    max_pages: 3
    max_age: 168h
    selectors:
      article: article
      title: h3
  - name: cointelegraph
    kind: rss
    url: https://cointelegraph.com/rss
models:
  - name: finbert
    kind: inference
    endpoint: https://example.test/models/finbert
  - name: lexicon
    kind: lexicon
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "headline-sentiment.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/h.db", cfg.Store.Path)
	assert.Equal(t, time.Hour, cfg.Ingest.Bucket)
	assert.Equal(t, 2, cfg.Ingest.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset values keep their defaults.
	assert.Equal(t, 300, cfg.Ingest.MaxTitleRunes)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, 30*time.Minute, cfg.Sources[0].Interval)
	assert.Equal(t, "h3", cfg.Sources[0].Selectors.Title)
	assert.Equal(t, 3, cfg.Sources[0].MaxPages)
	assert.Equal(t, 7*24*time.Hour, cfg.Sources[0].MaxAge)
	assert.Equal(t, []int{0, 3}, cfg.Market.Lags)
	assert.Equal(t, 30*time.Minute, cfg.SourceInterval("coindesk"))

	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "finbert", cfg.Models[0].Name)
	assert.Equal(t, types.ModelInference, cfg.Models[0].Kind)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "headline-sentiment.yaml"), []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("HEADLINE_SENTIMENT_LOG_LEVEL", "error")
	t.Setenv("HEADLINE_SENTIMENT_STORE_PATH", "env.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "env.db", cfg.Store.Path)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := chdirTemp(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *types.Config)
		errMsg string
	}{
		{name: "defaults are valid", mutate: func(c *types.Config) {}},
		{
			name:   "unknown driver",
			mutate: func(c *types.Config) { c.Store.Driver = "mysql" },
			errMsg: "unknown store driver",
		},
		{
			name:   "unknown dedup scope",
			mutate: func(c *types.Config) { c.Ingest.DedupScope = "fuzzy" },
			errMsg: "dedup_scope",
		},
		{
			name: "duplicate source",
			mutate: func(c *types.Config) {
				c.Sources = []types.SourceConfig{
					{Name: "a", Kind: types.SourceRSS},
					{Name: "a", Kind: types.SourceRSS},
				}
			},
			errMsg: "duplicate source",
		},
		{
			name: "negative max pages",
			mutate: func(c *types.Config) {
				c.Sources = []types.SourceConfig{{Name: "a", Kind: types.SourceHTML, MaxPages: -1}}
			},
			errMsg: "negative paging limit",
		},
		{
			name:   "negative lag",
			mutate: func(c *types.Config) { c.Market.Lags = []int{0, -1} },
			errMsg: "market.lags",
		},
		{
			name: "unknown model kind",
			mutate: func(c *types.Config) {
				c.Models = []types.ModelConfig{{Name: "m", Kind: "oracle"}}
			},
			errMsg: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplySecrets(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Models = []types.ModelConfig{
		{Name: "claude", Kind: types.ModelClaude},
		{Name: "finbert", Kind: types.ModelInference, APIKey: "explicit"},
		{Name: "hosted", Kind: types.ModelInference},
	}

	ApplySecrets(&cfg, map[string]string{
		SecretAnthropicKey: "sk-ant",
		SecretHFToken:      "hf-token",
		SecretDatabaseURL:  "postgres://localhost/h",
	})

	assert.Equal(t, "sk-ant", cfg.Models[0].APIKey)
	assert.Equal(t, "explicit", cfg.Models[1].APIKey)
	assert.Equal(t, "hf-token", cfg.Models[2].APIKey)
	assert.Equal(t, "postgres://localhost/h", cfg.Store.DatabaseURL)
}

func TestInitLogger(t *testing.T) {
	orig := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(orig) })

	require.NoError(t, InitLogger(types.LogConfig{Level: "debug", Format: "json"}))
	assert.NotSame(t, orig, zap.L())

	err := InitLogger(types.LogConfig{Level: "loud", Format: "console"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
