// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trend

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// ErrInvalidRange is returned for an empty or inverted time range, a
// non-positive window size, or a series longer than the configured cap.
var ErrInvalidRange = eris.New("invalid trend range")

// Store is the part of the headline store the aggregator reads.
type Store interface {
	Headlines(ctx context.Context, q store.Query) ([]types.Headline, error)
}

// Aggregator computes trend windows from the stored headlines.
type Aggregator struct {
	store      Store
	maxWindows int
}

// NewAggregator returns an Aggregator reading from st.
func NewAggregator(st Store, cfg types.TrendConfig) *Aggregator {
	limit := cfg.MaxSeriesWindows
	if limit <= 0 {
		limit = types.DefaultConfig().Trend.MaxSeriesWindows
	}
	return &Aggregator{store: st, maxWindows: limit}
}

// ComputeWindow scans the headlines published in [start, end) and returns
// the accumulated window.
func (a *Aggregator) ComputeWindow(ctx context.Context, start, end time.Time) (*Window, error) {
	if !end.After(start) {
		return nil, eris.Wrapf(ErrInvalidRange, "window end %s is not after start %s", end, start)
	}
	hs, err := a.store.Headlines(ctx, store.Query{From: start, To: end})
	if err != nil {
		return nil, err
	}
	w := NewWindow(start, end)
	w.Apply(hs)
	return w, nil
}

// Series partitions [from, to) into consecutive windows of size, the last
// one cut short at to, and summarizes each from a single store scan.
// Windows without headlines are included with a zero count.
func (a *Aggregator) Series(ctx context.Context, from, to time.Time, size time.Duration) ([]types.TrendWindow, error) {
	windows, err := a.partition(from, to, size)
	if err != nil {
		return nil, err
	}

	hs, err := a.store.Headlines(ctx, store.Query{From: from, To: to})
	if err != nil {
		return nil, err
	}
	for _, h := range hs {
		i := int(h.PublishedAt.Sub(windows[0].Start) / size)
		if i >= 0 && i < len(windows) {
			windows[i].Add(h)
		}
	}

	out := make([]types.TrendWindow, len(windows))
	for i, w := range windows {
		out[i] = w.Summary()
	}
	return out, nil
}

func (a *Aggregator) partition(from, to time.Time, size time.Duration) ([]*Window, error) {
	if size <= 0 {
		return nil, eris.Wrapf(ErrInvalidRange, "window size %s", size)
	}
	if !to.After(from) {
		return nil, eris.Wrapf(ErrInvalidRange, "series end %s is not after start %s", to, from)
	}
	span := to.Sub(from)
	n := int(span / size)
	if span%size != 0 {
		n++
	}
	if n > a.maxWindows {
		return nil, eris.Wrapf(ErrInvalidRange, "%d windows exceeds the limit of %d", n, a.maxWindows)
	}

	windows := make([]*Window, 0, n)
	for start := from; start.Before(to); start = start.Add(size) {
		end := start.Add(size)
		if end.After(to) {
			end = to
		}
		windows = append(windows, NewWindow(start, end))
	}
	return windows, nil
}
