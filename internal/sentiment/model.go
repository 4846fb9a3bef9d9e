// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sentiment scores headlines with one or more sentiment models and
// normalizes their verdicts onto a shared polarity scale.
package sentiment

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/internal/resilience"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// ErrModelUnavailable marks a model call that failed, timed out, or was
// rejected by an open circuit breaker.
var ErrModelUnavailable = eris.New("model unavailable")

// Model scores one text. Implementations must be safe for concurrent use.
type Model interface {
	Name() string
	Score(ctx context.Context, text string) (Output, error)
}

// unavailable wraps cause as ErrModelUnavailable, keeping it retryable when
// cause was.
func unavailable(model string, cause error) error {
	err := eris.Wrapf(ErrModelUnavailable, "%s: %v", model, cause)
	if resilience.IsTransient(cause) {
		status := 0
		var te *resilience.TransientError
		if errors.As(cause, &te) {
			status = te.StatusCode
		}
		return resilience.NewTransientError(err, status)
	}
	return err
}

// truncateRunes cuts text to at most n runes. n <= 0 keeps text whole.
func truncateRunes(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// FromConfig builds the model declared by cfg. HTTP-backed models share
// client.
func FromConfig(cfg types.ModelConfig, client *httputil.Client) (Model, error) {
	if cfg.Name == "" {
		return nil, eris.New("model has no name")
	}
	switch cfg.Kind {
	case types.ModelLexicon:
		return NewLexiconModel(cfg.Name), nil
	case types.ModelInference:
		if cfg.Endpoint == "" {
			return nil, eris.Errorf("model %s: inference requires endpoint", cfg.Name)
		}
		return NewInferenceModel(cfg.Name, cfg.Endpoint, cfg.APIKey, cfg.MaxChars, client), nil
	case types.ModelClaude:
		if cfg.APIKey == "" {
			return nil, eris.Errorf("model %s: claude requires an API key (secret %q)", cfg.Name, "anthropic-api-key")
		}
		return NewClaudeModel(cfg.Name, cfg.Model, cfg.APIKey, cfg.MaxChars, httpClientOf(client)), nil
	default:
		return nil, eris.Errorf("model %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// FromConfigs builds every enabled model in cfg.
func FromConfigs(cfg types.Config, client *httputil.Client) ([]Model, error) {
	var out []Model
	for _, mc := range cfg.EnabledModels() {
		m, err := FromConfig(mc, client)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Names returns the model names in order.
func Names(models []Model) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.Name()
	}
	return out
}

func httpClientOf(c *httputil.Client) *http.Client {
	if c == nil || c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}
