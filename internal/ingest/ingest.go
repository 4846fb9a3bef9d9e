// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest polls source adapters concurrently, canonicalizes their
// items, and records new headlines in the store.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/headline-sentiment/internal/headline"
	"github.com/pdiddy/headline-sentiment/internal/source"
	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Store is the write side of the headline store used by ingestion.
type Store interface {
	InsertIfAbsent(ctx context.Context, h *types.Headline) (bool, error)
}

// Coordinator runs one poll across a set of adapters.
type Coordinator struct {
	store Store
	canon *headline.Canonicalizer
	cfg   types.IngestConfig
	now   func() time.Time
}

// NewCoordinator returns a Coordinator writing to st.
func NewCoordinator(st Store, cfg types.IngestConfig) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Coordinator{
		store: st,
		canon: headline.NewCanonicalizer(cfg),
		cfg:   cfg,
		now:   time.Now,
	}
}

type fetchResult struct {
	items []types.RawItem
	err   error
}

// PollAll fetches every adapter concurrently and stores what they return.
// A failing adapter is recorded in the report and does not affect the
// others. Items are stored in adapter order, so when two sources report the
// same headline the earlier adapter's observation is kept.
//
// The returned error is non-nil only when the store fails or ctx is done;
// the partial report is returned with it.
func (c *Coordinator) PollAll(ctx context.Context, adapters []source.Adapter) (types.IngestReport, error) {
	report := types.NewIngestReport()
	results := make([]fetchResult, len(adapters))

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, a := range adapters {
		g.Go(func() error {
			results[i] = c.fetch(ctx, a)
			return nil
		})
	}
	g.Wait()

	for i, a := range adapters {
		name := a.Name()
		res := results[i]
		if res.err != nil {
			report.SourceErrors[name] = res.err.Error()
			report.PerSource[name] = types.SourceTally{}
			continue
		}
		if err := c.record(ctx, name, res.items, &report); err != nil {
			return report, err
		}
	}
	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "poll interrupted")
	}

	zap.L().Info("poll complete",
		zap.Int("sources", len(adapters)),
		zap.Int("new", report.NewCount),
		zap.Int("duplicate", report.DuplicateCount),
		zap.Int("malformed", report.Malformed),
		zap.Int("failed", len(report.SourceErrors)),
	)
	return report, nil
}

func (c *Coordinator) fetch(ctx context.Context, a source.Adapter) fetchResult {
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	items, err := a.Fetch(ctx)
	if err != nil {
		if !eris.Is(err, source.ErrSourceUnavailable) {
			err = eris.Wrapf(source.ErrSourceUnavailable, "%s: %v", a.Name(), err)
		}
		zap.L().Warn("source poll failed", zap.String("source", a.Name()), zap.Error(err))
		return fetchResult{err: err}
	}
	zap.L().Debug("source polled",
		zap.String("source", a.Name()),
		zap.Int("items", len(items)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fetchResult{items: items}
}

// record canonicalizes and inserts one source's items, updating report.
func (c *Coordinator) record(ctx context.Context, name string, items []types.RawItem, report *types.IngestReport) error {
	tally := types.SourceTally{Fetched: len(items)}
	defer func() { report.PerSource[name] = tally }()

	now := c.now()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "poll interrupted")
		}

		h, err := c.canon.Headline(name, item, now)
		if err != nil {
			zap.L().Debug("dropping malformed item", zap.String("source", name), zap.Error(err))
			tally.Malformed++
			report.Malformed++
			continue
		}

		inserted, err := c.store.InsertIfAbsent(ctx, &h)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return eris.Wrap(err, "poll interrupted")
			}
			if !store.IsUnavailable(err) {
				err = eris.Wrapf(store.ErrUnavailable, "inserting %s: %v", h.ID, err)
			}
			zap.L().Error("store failed during poll", zap.String("source", name), zap.Error(err))
			return err
		}
		if inserted {
			tally.New++
			report.NewCount++
		} else {
			tally.Duplicate++
			report.DuplicateCount++
		}
	}
	return nil
}
