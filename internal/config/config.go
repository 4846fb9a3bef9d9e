// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the application configuration and installs the
// global logger.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g. HEADLINE_SENTIMENT_STORE_PATH.
const EnvPrefix = "HEADLINE_SENTIMENT"

// Secret file names understood by ApplySecrets.
const (
	SecretAnthropicKey = "anthropic-api-key"
	SecretHFToken      = "hf-api-token"
	SecretDatabaseURL  = "database-url"
)

// Load reads configuration from path, or from headline-sentiment.yaml in the
// working directory or ~/.config/headline-sentiment/ when path is empty.
// A missing config file is not an error; defaults apply.
func Load(path string) (*types.Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("headline-sentiment")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "headline-sentiment"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, types.DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	cfg := types.DefaultConfig()
	cfg.Models = nil
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Models) == 0 {
		cfg.Models = types.DefaultConfig().Models
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.database_url", d.Store.DatabaseURL)
	v.SetDefault("store.conflict_retries", d.Store.ConflictRetries)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.request_delay", d.HTTP.RequestDelay)

	v.SetDefault("ingest.concurrency", d.Ingest.Concurrency)
	v.SetDefault("ingest.fetch_timeout", d.Ingest.FetchTimeout)
	v.SetDefault("ingest.max_title_runes", d.Ingest.MaxTitleRunes)
	v.SetDefault("ingest.bucket", d.Ingest.Bucket)
	v.SetDefault("ingest.dedup_scope", d.Ingest.DedupScope)

	v.SetDefault("scoring.concurrency", d.Scoring.Concurrency)
	v.SetDefault("scoring.call_timeout", d.Scoring.CallTimeout)
	v.SetDefault("scoring.batch_limit", d.Scoring.BatchLimit)
	v.SetDefault("scoring.max_attempts", d.Scoring.MaxAttempts)
	v.SetDefault("scoring.failure_threshold", d.Scoring.FailureThreshold)
	v.SetDefault("scoring.reset_timeout", d.Scoring.ResetTimeout)

	v.SetDefault("trend.window", d.Trend.Window)
	v.SetDefault("trend.keep_windows", d.Trend.KeepWindows)
	v.SetDefault("trend.max_series_windows", d.Trend.MaxSeriesWindows)

	v.SetDefault("scheduler.interval", d.Scheduler.Interval)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("market.base_url", d.Market.BaseURL)
	v.SetDefault("market.coin", d.Market.Coin)
	v.SetDefault("market.currency", d.Market.Currency)
	v.SetDefault("market.lags", d.Market.Lags)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// maxLagDays bounds market.lags.
const maxLagDays = 30

// Validate rejects configurations the pipeline cannot run with.
func Validate(cfg *types.Config) error {
	switch cfg.Store.Driver {
	case types.DriverSQLite:
		if cfg.Store.Path == "" {
			return eris.New("config: store.path is required for sqlite")
		}
	case types.DriverPostgres:
	default:
		return eris.Errorf("config: unknown store driver %q", cfg.Store.Driver)
	}

	switch cfg.Ingest.DedupScope {
	case types.DedupGlobal, types.DedupSource:
	default:
		return eris.Errorf("config: unknown ingest.dedup_scope %q", cfg.Ingest.DedupScope)
	}
	if cfg.Ingest.Bucket <= 0 {
		return eris.New("config: ingest.bucket must be positive")
	}

	seen := make(map[string]bool)
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return eris.Errorf("config: sources[%d] has no name", i)
		}
		if seen[s.Name] {
			return eris.Errorf("config: duplicate source %q", s.Name)
		}
		seen[s.Name] = true
		switch s.Kind {
		case types.SourceRSS, types.SourceHTML, types.SourceFile:
		default:
			return eris.Errorf("config: source %q has unknown kind %q", s.Name, s.Kind)
		}
		if s.MaxPages < 0 || s.MaxItems < 0 || s.MaxAge < 0 {
			return eris.Errorf("config: source %q has a negative paging limit", s.Name)
		}
	}

	for _, lag := range cfg.Market.Lags {
		if lag < 0 || lag > maxLagDays {
			return eris.Errorf("config: market.lags entry %d outside 0..%d", lag, maxLagDays)
		}
	}

	seen = make(map[string]bool)
	for i, m := range cfg.Models {
		if m.Name == "" {
			return eris.Errorf("config: models[%d] has no name", i)
		}
		if seen[m.Name] {
			return eris.Errorf("config: duplicate model %q", m.Name)
		}
		seen[m.Name] = true
		switch m.Kind {
		case types.ModelLexicon, types.ModelInference, types.ModelClaude:
		default:
			return eris.Errorf("config: model %q has unknown kind %q", m.Name, m.Kind)
		}
	}
	return nil
}

// ApplySecrets fills credentials left empty in cfg from the secrets map.
func ApplySecrets(cfg *types.Config, secrets map[string]string) {
	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = secrets[SecretDatabaseURL]
	}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.APIKey != "" {
			continue
		}
		switch m.Kind {
		case types.ModelClaude:
			m.APIKey = secrets[SecretAnthropicKey]
		case types.ModelInference:
			m.APIKey = secrets[SecretHFToken]
		}
	}
}

// InitLogger installs the global zap logger.
func InitLogger(cfg types.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
