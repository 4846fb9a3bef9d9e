// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trend

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// changeBatch bounds one change-feed read.
const changeBatch = 1000

// ChangeFeed is the part of the headline store the tracker follows.
type ChangeFeed interface {
	Store
	ChangedSince(ctx context.Context, seq int64, limit int) ([]types.Headline, int64, error)
	MaxSeq(ctx context.Context) (int64, error)
}

// Tracker keeps the most recent live windows up to date from the store's
// change feed. Windows are aligned to multiples of the window size.
type Tracker struct {
	feed ChangeFeed
	size time.Duration
	keep int

	// advance serializes Restore and Advance.
	advance  sync.Mutex
	restored bool

	mu      sync.RWMutex
	windows []*Window
	seq     int64
}

// NewTracker returns a Tracker over feed. The first Advance restores the
// windows when Restore was not called.
func NewTracker(feed ChangeFeed, cfg types.TrendConfig) *Tracker {
	defaults := types.DefaultConfig().Trend
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.KeepWindows <= 0 {
		cfg.KeepWindows = defaults.KeepWindows
	}
	return &Tracker{feed: feed, size: cfg.Window, keep: cfg.KeepWindows}
}

// Restore rebuilds the windows ending with the one containing now from a
// full scan. The change sequence is read first, so changes committed during
// the scan are delivered again by the next Advance and replace their
// contributions.
func (t *Tracker) Restore(ctx context.Context, now time.Time) error {
	t.advance.Lock()
	defer t.advance.Unlock()
	return t.restore(ctx, now)
}

func (t *Tracker) restore(ctx context.Context, now time.Time) error {
	seq, err := t.feed.MaxSeq(ctx)
	if err != nil {
		return err
	}

	end := now.UTC().Truncate(t.size).Add(t.size)
	start := end.Add(-time.Duration(t.keep) * t.size)
	windows, err := t.scan(ctx, start, end)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.windows = windows
	t.seq = seq
	t.mu.Unlock()
	t.restored = true

	zap.L().Debug("trend windows restored",
		zap.Time("from", start),
		zap.Time("to", end),
		zap.Int64("seq", seq),
	)
	return nil
}

// Advance rolls the windows forward to now and folds in every headline
// changed since the last advance. It returns the number of changed
// headlines read from the feed.
func (t *Tracker) Advance(ctx context.Context, now time.Time) (int, error) {
	t.advance.Lock()
	defer t.advance.Unlock()

	if !t.restored {
		if err := t.restore(ctx, now); err != nil {
			return 0, err
		}
	}
	if err := t.roll(ctx, now); err != nil {
		return 0, err
	}

	t.mu.RLock()
	seq := t.seq
	t.mu.RUnlock()

	read := 0
	for {
		hs, next, err := t.feed.ChangedSince(ctx, seq, changeBatch)
		if err != nil {
			return read, err
		}
		read += len(hs)

		t.mu.Lock()
		for _, h := range hs {
			if w := t.windowFor(h.PublishedAt); w != nil {
				w.Add(h)
			}
		}
		t.seq = next
		t.mu.Unlock()

		seq = next
		if len(hs) < changeBatch {
			return read, nil
		}
	}
}

// roll drops windows that fell out of range and computes any new ones
// from the store.
func (t *Tracker) roll(ctx context.Context, now time.Time) error {
	end := now.UTC().Truncate(t.size).Add(t.size)

	t.mu.RLock()
	var last time.Time
	if n := len(t.windows); n > 0 {
		last = t.windows[n-1].End
	}
	t.mu.RUnlock()

	if !last.IsZero() && !end.After(last) {
		return nil
	}

	start := end.Add(-time.Duration(t.keep) * t.size)
	contiguous := !last.IsZero() && !last.Before(start)
	if contiguous {
		start = last
	}
	fresh, err := t.scan(ctx, start, end)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !contiguous {
		t.windows = nil
	}
	t.windows = append(t.windows, fresh...)
	if extra := len(t.windows) - t.keep; extra > 0 {
		t.windows = append([]*Window(nil), t.windows[extra:]...)
	}
	return nil
}

// scan computes consecutive windows covering [start, end) from one query.
func (t *Tracker) scan(ctx context.Context, start, end time.Time) ([]*Window, error) {
	var windows []*Window
	for ws := start; ws.Before(end); ws = ws.Add(t.size) {
		windows = append(windows, NewWindow(ws, ws.Add(t.size)))
	}
	if len(windows) == 0 {
		return nil, nil
	}

	hs, err := t.feed.Headlines(ctx, store.Query{From: start, To: end})
	if err != nil {
		return nil, err
	}
	for _, h := range hs {
		i := int(h.PublishedAt.Sub(start) / t.size)
		if i >= 0 && i < len(windows) {
			windows[i].Add(h)
		}
	}
	return windows, nil
}

// windowFor returns the live window containing ts, or nil. Callers hold mu.
func (t *Tracker) windowFor(ts time.Time) *Window {
	if len(t.windows) == 0 {
		return nil
	}
	i := int(ts.Sub(t.windows[0].Start) / t.size)
	if ts.Before(t.windows[0].Start) || i >= len(t.windows) {
		return nil
	}
	return t.windows[i]
}

// Seq returns the highest change sequence folded into the windows.
func (t *Tracker) Seq() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seq
}

// Snapshot returns the summaries of the live windows, oldest first.
func (t *Tracker) Snapshot() []types.TrendWindow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.TrendWindow, len(t.windows))
	for i, w := range t.windows {
		out[i] = w.Summary()
	}
	return out
}
