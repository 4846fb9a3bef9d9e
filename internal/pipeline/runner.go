// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs ingestion, scoring, and trend maintenance as one
// cycle over an explicit CycleState, and repeats cycles on a timer.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/ingest"
	"github.com/pdiddy/headline-sentiment/internal/sentiment"
	"github.com/pdiddy/headline-sentiment/internal/source"
	"github.com/pdiddy/headline-sentiment/internal/trend"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Store is everything a cycle reads and writes.
type Store interface {
	ingest.Store
	sentiment.Store
	trend.ChangeFeed
	LoadCycleState(ctx context.Context) (types.CycleState, error)
	SaveCycleState(ctx context.Context, st types.CycleState) error
}

// Report is the outcome of one cycle.
type Report struct {
	Cycle      int64     `json:"cycle" yaml:"cycle"`
	CycleID    string    `json:"cycle_id" yaml:"cycle_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Ingest types.IngestReport `json:"ingest" yaml:"ingest"`
	Score  types.ScoreReport  `json:"score" yaml:"score"`

	// TrendChanges is the number of changed headlines folded into the
	// live trend windows.
	TrendChanges int `json:"trend_changes" yaml:"trend_changes"`

	// Breakers maps model name to its circuit breaker state.
	Breakers map[string]string `json:"breakers,omitempty" yaml:"breakers,omitempty"`
}

// Runner executes cycles. It holds no scheduling state of its own; that
// travels in the CycleState passed to RunCycle.
type Runner struct {
	store     Store
	coord     *ingest.Coordinator
	engine    *sentiment.Engine
	tracker   *trend.Tracker
	adapters  []source.Adapter
	intervals map[string]time.Duration
	models    []sentiment.Model
	now       func() time.Time
}

// NewRunner wires a Runner over st for the given adapters and models.
func NewRunner(st Store, cfg types.Config, adapters []source.Adapter, models []sentiment.Model) *Runner {
	intervals := make(map[string]time.Duration, len(adapters))
	for _, a := range adapters {
		intervals[a.Name()] = cfg.SourceInterval(a.Name())
	}
	return &Runner{
		store:     st,
		coord:     ingest.NewCoordinator(st, cfg.Ingest),
		engine:    sentiment.NewEngine(st, cfg.Scoring),
		tracker:   trend.NewTracker(st, cfg.Trend),
		adapters:  adapters,
		intervals: intervals,
		models:    models,
		now:       time.Now,
	}
}

// Tracker returns the live trend tracker the runner advances.
func (r *Runner) Tracker() *trend.Tracker { return r.tracker }

// Engine returns the scoring engine, whose breakers persist across cycles.
func (r *Runner) Engine() *sentiment.Engine { return r.engine }

// RunCycle polls the due sources, scores pending headlines, advances the
// live trend windows, and saves the updated state. The input state is not
// modified. Source and model failures are reported and never fail the
// cycle; a store failure or cancellation does, and the state returned with
// it reflects the steps that completed. Sources whose poll was cut short by
// a store failure are not recorded as attempted.
func (r *Runner) RunCycle(ctx context.Context, state types.CycleState) (types.CycleState, Report, error) {
	next := state.Clone()
	next.Cycle++
	next.CycleID = uuid.NewString()
	now := r.now().UTC()

	report := Report{Cycle: next.Cycle, CycleID: next.CycleID, StartedAt: now}
	log := zap.L().With(zap.Int64("cycle", next.Cycle), zap.String("cycle_id", next.CycleID))

	var due []source.Adapter
	var skipped []string
	for _, a := range r.adapters {
		if next.Due(a.Name(), r.intervals[a.Name()], now) {
			due = append(due, a)
		} else {
			skipped = append(skipped, a.Name())
		}
	}

	ingested, err := r.coord.PollAll(ctx, due)
	ingested.Skipped = skipped
	report.Ingest = ingested
	for _, a := range due {
		var srcErr error
		msg, failed := ingested.SourceErrors[a.Name()]
		if failed {
			srcErr = errors.New(msg)
		} else if err != nil {
			// The abort may have left this source's items uncommitted, so
			// it stays due.
			continue
		}
		rs := next.Sources[a.Name()]
		rs.Record(now, srcErr)
		next.Sources[a.Name()] = rs
	}
	next.LastPollAt = now
	if err != nil {
		return next, r.finish(report), eris.Wrap(err, "ingest")
	}

	scored, err := r.engine.ScorePending(ctx, r.models)
	report.Score = scored
	failures := scored.ErrorsByModel()
	for _, m := range r.models {
		var modelErr error
		if n := failures[m.Name()]; n > 0 {
			modelErr = eris.Errorf("%d of %d pending headlines failed", n, scored.Pending)
		}
		rs := next.Models[m.Name()]
		rs.Record(now, modelErr)
		next.Models[m.Name()] = rs
	}
	next.LastScoreAt = now
	report.Breakers = r.engine.BreakerStates()
	if err != nil {
		return next, r.finish(report), eris.Wrap(err, "score")
	}

	changes, err := r.tracker.Advance(ctx, r.now())
	report.TrendChanges = changes
	if err != nil {
		return next, r.finish(report), eris.Wrap(err, "trend")
	}
	next.ChangeSeq = r.tracker.Seq()

	if err := r.store.SaveCycleState(ctx, next); err != nil {
		return next, r.finish(report), eris.Wrap(err, "saving cycle state")
	}

	report = r.finish(report)
	log.Info("cycle complete",
		zap.Int("new", ingested.NewCount),
		zap.Int("duplicate", ingested.DuplicateCount),
		zap.Int("malformed", ingested.Malformed),
		zap.Strings("failed_sources", ingested.FailedSources()),
		zap.Strings("skipped_sources", skipped),
		zap.Int("scored", scored.ScoredCount),
		zap.Int("score_failures", len(scored.Errors)),
		zap.Int("trend_changes", changes),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return next, report, nil
}

func (r *Runner) finish(report Report) Report {
	report.FinishedAt = r.now().UTC()
	return report
}
