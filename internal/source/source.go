// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source polls news sources for raw headline items. Each adapter
// wraps one transport (RSS/Atom feed, scraped HTML listing, local file)
// behind the Adapter interface so the ingestion coordinator can treat them
// uniformly.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// ErrSourceUnavailable marks a poll that could not complete: network
// failure, bad HTTP status, unparseable payload, or timeout.
var ErrSourceUnavailable = eris.New("source unavailable")

// Adapter fetches the current items of one source. Fetch may be called
// repeatedly and may return items already seen. Returning zero items is a
// normal result, not an error.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]types.RawItem, error)
}

// unavailable wraps cause as ErrSourceUnavailable for the named source.
func unavailable(name string, cause error) error {
	return eris.Wrapf(ErrSourceUnavailable, "%s: %v", name, cause)
}

// FromConfig builds the adapter declared by cfg. HTTP adapters share client.
func FromConfig(cfg types.SourceConfig, client *httputil.Client) (Adapter, error) {
	if cfg.Name == "" {
		return nil, eris.New("source has no name")
	}
	switch cfg.Kind {
	case types.SourceRSS:
		if cfg.URL == "" {
			return nil, eris.Errorf("source %s: rss requires url", cfg.Name)
		}
		return NewRSSAdapter(cfg.Name, cfg.URL, client), nil
	case types.SourceHTML:
		if cfg.URL == "" {
			return nil, eris.Errorf("source %s: html requires url", cfg.Name)
		}
		return NewHTMLAdapter(cfg, client), nil
	case types.SourceFile:
		if cfg.Path == "" {
			return nil, eris.Errorf("source %s: file requires path", cfg.Name)
		}
		return NewFileAdapter(cfg.Name, cfg.Path), nil
	default:
		return nil, eris.Errorf("source %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// FromConfigs builds adapters for every enabled source in cfg.
func FromConfigs(cfg types.Config, client *httputil.Client) ([]Adapter, error) {
	var out []Adapter
	for _, sc := range cfg.EnabledSources() {
		a, err := FromConfig(sc, client)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// utcPtr returns a pointer to t in UTC, or nil for the zero time.
func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
