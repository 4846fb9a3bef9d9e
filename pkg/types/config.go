// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on 429 and 5xx responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestDelay is the minimum spacing between requests to one host.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and locates the headline store.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty" mapstructure:"database_url"`

	// ConflictRetries bounds retries of a write that hit lock contention.
	ConflictRetries int `json:"conflict_retries" yaml:"conflict_retries" mapstructure:"conflict_retries"`
}

// Dedup scopes.
const (
	// DedupGlobal collapses the same canonical title across all sources.
	DedupGlobal = "global"

	// DedupSource keeps one record per source for the same title.
	DedupSource = "source"
)

// IngestConfig holds settings for the ingestion coordinator.
type IngestConfig struct {
	// Concurrency bounds simultaneous source polls.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// FetchTimeout bounds one adapter fetch, retries included.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`

	// MaxTitleRunes caps the canonical title length.
	MaxTitleRunes int `json:"max_title_runes" yaml:"max_title_runes" mapstructure:"max_title_runes"`

	// Bucket is the granularity published timestamps are truncated to
	// when deriving a headline id.
	Bucket time.Duration `json:"bucket" yaml:"bucket" mapstructure:"bucket"`

	// DedupScope is "global" or "source".
	DedupScope string `json:"dedup_scope" yaml:"dedup_scope" mapstructure:"dedup_scope"`
}

// ScoringConfig holds settings for the sentiment scoring engine.
type ScoringConfig struct {
	// Concurrency bounds simultaneous model calls.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// CallTimeout bounds one model call, retries included.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`

	// BatchLimit caps the headlines selected per pass, newest first.
	BatchLimit int `json:"batch_limit" yaml:"batch_limit" mapstructure:"batch_limit"`

	// MaxAttempts is the number of tries per cell on transient errors.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// FailureThreshold is the number of consecutive failures that open a
	// model's circuit breaker.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// ResetTimeout is how long an open breaker rejects calls.
	ResetTimeout time.Duration `json:"reset_timeout" yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// TrendConfig holds settings for the live trend tracker and series queries.
type TrendConfig struct {
	// Window is the live tracker's window size.
	Window time.Duration `json:"window" yaml:"window" mapstructure:"window"`

	// KeepWindows is how many recent live windows are retained.
	KeepWindows int `json:"keep_windows" yaml:"keep_windows" mapstructure:"keep_windows"`

	// MaxSeriesWindows caps the windows one series query may produce.
	MaxSeriesWindows int `json:"max_series_windows" yaml:"max_series_windows" mapstructure:"max_series_windows"`
}

// SchedulerConfig holds the cycle timer settings.
type SchedulerConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
}

// ServerConfig holds the read-only API server settings.
type ServerConfig struct {
	Addr           string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
}

// MarketConfig holds settings for the BTC price feed.
type MarketConfig struct {
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Coin     string `json:"coin" yaml:"coin" mapstructure:"coin"`
	Currency string `json:"currency" yaml:"currency" mapstructure:"currency"`

	// Lags are the day offsets between sentiment and the price return it
	// is correlated with. 0 is the same day.
	Lags []int `json:"lags" yaml:"lags" mapstructure:"lags"`
}

// LogConfig selects the logger encoding and level.
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Source kinds.
const (
	SourceRSS  = "rss"
	SourceHTML = "html"
	SourceFile = "file"
)

// HTMLSelectors locate headlines on a listing page.
type HTMLSelectors struct {
	// Article matches one element per headline.
	Article string `json:"article" yaml:"article" mapstructure:"article"`

	// Title, Date, and Link are evaluated inside each article element.
	Title string `json:"title" yaml:"title" mapstructure:"title"`
	Date  string `json:"date" yaml:"date" mapstructure:"date"`
	Link  string `json:"link" yaml:"link" mapstructure:"link"`

	// DateAttr reads the date from an attribute (e.g. "datetime") instead
	// of the element text.
	DateAttr string `json:"date_attr" yaml:"date_attr" mapstructure:"date_attr"`

	// DateLayouts are tried in order when parsing the date.
	DateLayouts []string `json:"date_layouts" yaml:"date_layouts" mapstructure:"date_layouts"`
}

// SourceConfig declares one news source.
type SourceConfig struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Kind is "rss", "html", or "file".
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	URL  string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`

	// Interval is the minimum time between polls of this source.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty" mapstructure:"interval"`

	Selectors HTMLSelectors `json:"selectors,omitempty" yaml:"selectors,omitempty" mapstructure:"selectors"`

	// MaxPages is how many listing pages an html source walks per poll.
	// Zero or one fetches only URL.
	MaxPages int `json:"max_pages,omitempty" yaml:"max_pages,omitempty" mapstructure:"max_pages"`

	// PageParam is the query parameter carrying the page number, "page"
	// when empty.
	PageParam string `json:"page_param,omitempty" yaml:"page_param,omitempty" mapstructure:"page_param"`

	// MaxAge drops html items published longer ago than this and stops
	// paging at the first page that had any. Zero keeps everything.
	MaxAge time.Duration `json:"max_age,omitempty" yaml:"max_age,omitempty" mapstructure:"max_age"`

	// MaxItems caps the items one html poll returns. Zero is unlimited.
	MaxItems int `json:"max_items,omitempty" yaml:"max_items,omitempty" mapstructure:"max_items"`

	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty" mapstructure:"disabled"`
}

// Model kinds.
const (
	ModelLexicon   = "lexicon"
	ModelInference = "inference"
	ModelClaude    = "claude"
)

// ModelConfig declares one sentiment model.
type ModelConfig struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Kind is "lexicon", "inference", or "claude".
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Endpoint is the inference URL for kind "inference".
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`

	// Model is the provider model id for kind "claude".
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`

	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// MaxChars truncates the text sent to the model.
	MaxChars int `json:"max_chars,omitempty" yaml:"max_chars,omitempty" mapstructure:"max_chars"`

	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty" mapstructure:"disabled"`
}

// Config is the full application configuration.
type Config struct {
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	HTTP      HTTPConfig      `json:"http" yaml:"http" mapstructure:"http"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest" mapstructure:"ingest"`
	Scoring   ScoringConfig   `json:"scoring" yaml:"scoring" mapstructure:"scoring"`
	Trend     TrendConfig     `json:"trend" yaml:"trend" mapstructure:"trend"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Market    MarketConfig    `json:"market" yaml:"market" mapstructure:"market"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	Sources   []SourceConfig  `json:"sources" yaml:"sources" mapstructure:"sources"`
	Models    []ModelConfig   `json:"models" yaml:"models" mapstructure:"models"`
}

// DefaultConfig returns the configuration used when no file overrides it.
// HTTP defaults pace scraping at one request per second.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver:          DriverSQLite,
			Path:            "data/headlines.db",
			ConflictRetries: 5,
		},
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "headline-sentiment/0.1",
			MaxRetries:   3,
			RequestDelay: time.Second,
		},
		Ingest: IngestConfig{
			Concurrency:   4,
			FetchTimeout:  60 * time.Second,
			MaxTitleRunes: 300,
			Bucket:        24 * time.Hour,
			DedupScope:    DedupGlobal,
		},
		Scoring: ScoringConfig{
			Concurrency:      8,
			CallTimeout:      30 * time.Second,
			BatchLimit:       500,
			MaxAttempts:      2,
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		},
		Trend: TrendConfig{
			Window:           time.Hour,
			KeepWindows:      48,
			MaxSeriesWindows: 10000,
		},
		Scheduler: SchedulerConfig{
			Interval: 15 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 30 * time.Second,
		},
		Market: MarketConfig{
			BaseURL:  "https://api.coingecko.com/api/v3",
			Coin:     "bitcoin",
			Currency: "usd",
			Lags:     []int{0, 1},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Models: []ModelConfig{
			{Name: "lexicon", Kind: ModelLexicon},
		},
	}
}

// EnabledSources returns the sources not marked disabled.
func (c Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

// EnabledModels returns the models not marked disabled.
func (c Config) EnabledModels() []ModelConfig {
	var out []ModelConfig
	for _, m := range c.Models {
		if !m.Disabled {
			out = append(out, m)
		}
	}
	return out
}

// SourceInterval returns the configured interval of the named source.
func (c Config) SourceInterval(name string) time.Duration {
	for _, s := range c.Sources {
		if s.Name == name {
			return s.Interval
		}
	}
	return 0
}
