// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sentiment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/headline-sentiment/internal/resilience"
	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Store is the part of the headline store the engine reads and writes.
type Store interface {
	Pending(ctx context.Context, models []string, limit int) ([]types.Headline, error)
	PutScore(ctx context.Context, headlineID string, score types.SentimentScore) error
}

// Engine fills in missing (headline, model) scores.
type Engine struct {
	store Store
	cfg   types.ScoringConfig
	retry resilience.RetryConfig
	now   func() time.Time

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewEngine returns an Engine writing scores to st.
func NewEngine(st Store, cfg types.ScoringConfig) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.ShouldRetry = resilience.IsTransient
	return &Engine{
		store:    st,
		cfg:      cfg,
		retry:    retry,
		now:      time.Now,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// uniqueByName drops models whose name was already seen; the first wins.
func uniqueByName(models []Model) []Model {
	seen := make(map[string]bool, len(models))
	out := make([]Model, 0, len(models))
	for _, m := range models {
		if seen[m.Name()] {
			continue
		}
		seen[m.Name()] = true
		out = append(out, m)
	}
	return out
}

// ScorePending scores every pending headline with each model it lacks.
// Headlines are taken newest first, up to the configured batch limit.
// Models sharing a name are scored once, by the first of them.
// A failed cell is reported and left unscored for the next pass; only a
// store failure or cancellation ends the pass early with an error.
func (e *Engine) ScorePending(ctx context.Context, models []Model) (types.ScoreReport, error) {
	var report types.ScoreReport
	models = uniqueByName(models)
	if len(models) == 0 {
		return report, nil
	}

	names := Names(models)
	pending, err := e.store.Pending(ctx, names, e.cfg.BatchLimit)
	if err != nil {
		return report, err
	}
	report.Pending = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	byName := make(map[string]Model, len(models))
	for _, m := range models {
		byName[m.Name()] = m
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, h := range pending {
		for _, name := range h.MissingModels(names) {
			m := byName[name]
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				err := e.scoreCell(gctx, m, h)
				if err == nil {
					mu.Lock()
					report.ScoredCount++
					mu.Unlock()
					return nil
				}
				if store.IsUnavailable(err) {
					return err
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("scoring failed",
					zap.String("headline_id", h.ID),
					zap.String("model", name),
					zap.Error(err),
				)
				mu.Lock()
				report.Errors = append(report.Errors, types.ScoreError{
					HeadlineID: h.ID,
					Model:      name,
					Error:      err.Error(),
				})
				mu.Unlock()
				return nil
			})
		}
	}

	err = g.Wait()
	sort.Slice(report.Errors, func(i, j int) bool {
		a, b := report.Errors[i], report.Errors[j]
		if a.HeadlineID != b.HeadlineID {
			return a.HeadlineID < b.HeadlineID
		}
		return a.Model < b.Model
	})
	if err != nil {
		return report, eris.Wrap(err, "scoring interrupted")
	}

	zap.L().Info("scoring complete",
		zap.Int("pending", report.Pending),
		zap.Int("scored", report.ScoredCount),
		zap.Int("failed", len(report.Errors)),
	)
	return report, nil
}

// scoreCell calls m for h under the per-call timeout, the model's breaker,
// and transient retry, then writes the normalized score.
func (e *Engine) scoreCell(ctx context.Context, m Model, h types.Headline) error {
	out, err := e.call(ctx, m, h.Title)
	if err != nil {
		return err
	}
	score, err := Normalize(m.Name(), out, e.now())
	if err != nil {
		return err
	}
	return e.store.PutScore(ctx, h.ID, score)
}

func (e *Engine) call(ctx context.Context, m Model, text string) (Output, error) {
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}

	out, err := resilience.ExecuteVal(ctx, e.breaker(m.Name()), func(ctx context.Context) (Output, error) {
		return resilience.DoVal(ctx, e.retryFor(m.Name()), func(ctx context.Context) (Output, error) {
			return m.Score(ctx, text)
		})
	})
	if err == nil {
		return out, nil
	}
	if eris.Is(err, resilience.ErrCircuitOpen) {
		return nil, eris.Wrapf(ErrModelUnavailable, "%s: circuit open", m.Name())
	}
	if !eris.Is(err, ErrModelUnavailable) && !eris.Is(err, ErrInvalidOutput) {
		return nil, eris.Wrapf(ErrModelUnavailable, "%s: %v", m.Name(), err)
	}
	return nil, err
}

func (e *Engine) retryFor(model string) resilience.RetryConfig {
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("sentiment", model)
	return cfg
}

// breaker returns the circuit breaker of the named model, creating it on
// first use. Only availability failures count toward tripping it.
func (e *Engine) breaker(model string) *resilience.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[model]; ok {
		return cb
	}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: e.cfg.FailureThreshold,
		ResetTimeout:     e.cfg.ResetTimeout,
		ShouldTrip: func(err error) bool {
			return !eris.Is(err, ErrInvalidOutput)
		},
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("model circuit changed",
				zap.String("model", model),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	e.breakers[model] = cb
	return cb
}

// BreakerStates reports the circuit state of every model used so far.
func (e *Engine) BreakerStates() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.breakers))
	for name, cb := range e.breakers {
		out[name] = cb.State().String()
	}
	return out
}
