// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs a cycle immediately and then once per interval until its
// context ends. A failed cycle is logged and its state discarded, so the
// next cycle starts again from the last saved state.
type Scheduler struct {
	runner   *Runner
	interval time.Duration

	mu   sync.Mutex
	last *Report
}

// NewScheduler returns a Scheduler driving r every interval.
func NewScheduler(r *Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{runner: r, interval: interval}
}

// Run loads the saved state and loops until ctx is done. It returns an
// error only when the initial state cannot be loaded.
func (s *Scheduler) Run(ctx context.Context) error {
	state, err := s.runner.store.LoadCycleState(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int64("last_cycle", state.Cycle),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		next, report, err := s.runner.RunCycle(ctx, state)
		if err == nil {
			state = next
		}
		s.mu.Lock()
		s.last = &report
		s.mu.Unlock()
		if err != nil && ctx.Err() == nil {
			zap.L().Error("cycle failed", zap.Int64("cycle", report.Cycle), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			zap.L().Info("scheduler stopped", zap.Int64("last_cycle", state.Cycle))
			return nil
		case <-ticker.C:
		}
	}
}

// LastReport returns the report of the most recent cycle, or nil before
// the first one finishes.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}
