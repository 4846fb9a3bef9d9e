// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), types.StoreConfig{
		Driver: types.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "headlines.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func scored(id string, published time.Time, polarities map[string]float64) types.Headline {
	h := types.Headline{
		ID:             id,
		Source:         "A",
		Title:          "headline " + id,
		PublishedAt:    published,
		TimeProvenance: types.ProvenanceSource,
		IngestedAt:     published,
		Scores:         make(map[string]types.SentimentScore),
	}
	for model, p := range polarities {
		label := types.LabelNeutral
		switch {
		case p > 0:
			label = types.LabelPositive
		case p < 0:
			label = types.LabelNegative
		}
		h.Scores[model] = types.SentimentScore{Model: model, Label: label, Polarity: p, ScoredAt: published}
	}
	return h
}

func put(t *testing.T, s *store.Store, h types.Headline) {
	t.Helper()
	ctx := context.Background()
	_, err := s.InsertIfAbsent(ctx, &h)
	require.NoError(t, err)
	for _, sc := range h.Scores {
		require.NoError(t, s.PutScore(ctx, h.ID, sc))
	}
}

func TestComputeWindowScenario(t *testing.T) {
	st := openStore(t)
	put(t, st, scored("a", t0, map[string]float64{"M": 1.0}))
	put(t, st, scored("b", t0.Add(time.Hour), map[string]float64{"M": -1.0}))

	agg := NewAggregator(st, types.TrendConfig{})
	w, err := agg.ComputeWindow(context.Background(), t0, t0.Add(2*time.Hour))
	require.NoError(t, err)

	tw := w.Summary()
	assert.Equal(t, 2, tw.Count)
	assert.InDelta(t, 0.0, tw.PerModelMeanPolarity["M"], 1e-12)
	assert.Equal(t, 2, tw.PerModelCount["M"])
	assert.Equal(t, 0.0, tw.Divergence)
	assert.Equal(t, 1.0, tw.AgreementScore)
}

func TestComputeWindowHalfOpen(t *testing.T) {
	st := openStore(t)
	put(t, st, scored("start", t0, map[string]float64{"M": 0.5}))
	put(t, st, scored("end", t0.Add(time.Hour), map[string]float64{"M": -0.5}))

	w, err := NewAggregator(st, types.TrendConfig{}).ComputeWindow(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count())
	assert.InDelta(t, 0.5, w.Summary().PerModelMeanPolarity["M"], 1e-12)
}

func TestComputeWindowUnscoredCounted(t *testing.T) {
	st := openStore(t)
	put(t, st, scored("a", t0, map[string]float64{"lex": 0.2, "finbert": 0.6}))
	put(t, st, scored("b", t0.Add(time.Minute), map[string]float64{"lex": -0.4}))
	put(t, st, scored("c", t0.Add(2*time.Minute), nil))

	w, err := NewAggregator(st, types.TrendConfig{}).ComputeWindow(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)
	tw := w.Summary()
	assert.Equal(t, 3, tw.Count)
	assert.InDelta(t, -0.1, tw.PerModelMeanPolarity["lex"], 1e-12)
	assert.InDelta(t, 0.6, tw.PerModelMeanPolarity["finbert"], 1e-12)
	assert.Equal(t, map[string]int{"lex": 2, "finbert": 1}, tw.PerModelCount)
	// (0.6 - -0.1)^2 / 4
	assert.InDelta(t, 0.1225, tw.Divergence, 1e-12)
	assert.InDelta(t, 0.8775, tw.AgreementScore, 1e-12)
	assert.Equal(t, []string{"finbert", "lex"}, tw.Models())
}

func TestComputeWindowInvalidRange(t *testing.T) {
	agg := NewAggregator(openStore(t), types.TrendConfig{})
	_, err := agg.ComputeWindow(context.Background(), t0, t0)
	assert.True(t, eris.Is(err, ErrInvalidRange))
}

func TestDivergence(t *testing.T) {
	assert.Equal(t, 0.0, Divergence(nil))
	assert.Equal(t, 0.0, Divergence(map[string]float64{"a": 0.9}))
	assert.InDelta(t, 1.0, Divergence(map[string]float64{"a": 1, "b": -1}), 1e-12)
	assert.InDelta(t, 0.0, Divergence(map[string]float64{"a": 0.3, "b": 0.3, "c": 0.3}), 1e-12)
	// Pairs: (1,0)=0.25, (1,-1)=1, (0,-1)=0.25.
	assert.InDelta(t, 0.5, Divergence(map[string]float64{"a": 1, "b": 0, "c": -1}), 1e-12)
}

// history builds a stream of headline deliveries over [t0, t0+4h) in which
// some headlines are delivered again and some gain or change scores later.
func history(r *rand.Rand, n int) (deliveries []types.Headline, final map[string]types.Headline) {
	final = make(map[string]types.Headline)
	models := []string{"lex", "finbert", "claude"}
	for i := range n {
		id := fmt.Sprintf("h%03d", i)
		published := t0.Add(time.Duration(r.IntN(4*60)) * time.Minute)
		pol := map[string]float64{}
		for _, m := range models {
			if r.IntN(3) > 0 {
				pol[m] = r.Float64()*2 - 1
			}
		}
		h := scored(id, published, pol)
		deliveries = append(deliveries, h)
		final[id] = h

		if r.IntN(4) == 0 {
			deliveries = append(deliveries, h)
		}
		if r.IntN(3) == 0 {
			pol2 := map[string]float64{}
			for m, p := range pol {
				pol2[m] = p
			}
			pol2[models[r.IntN(len(models))]] = r.Float64()*2 - 1
			h2 := scored(id, published, pol2)
			deliveries = append(deliveries, h2)
			final[id] = h2
		}
	}
	return deliveries, final
}

func TestComputeIncrementalMatchesFull(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	deliveries, final := history(r, 400)
	start, end := t0.Add(30*time.Minute), t0.Add(3*time.Hour)

	full := NewWindow(start, end)
	for _, h := range final {
		full.Add(h)
	}

	inc := NewWindow(start, end)
	for i := 0; i < len(deliveries); i += 37 {
		j := min(i+37, len(deliveries))
		inc = ComputeIncremental(inc, deliveries[i:j])
	}

	want, got := full.Summary(), inc.Summary()
	assert.Equal(t, want.Count, got.Count)
	assert.Equal(t, want.PerModelCount, got.PerModelCount)
	require.Len(t, got.PerModelMeanPolarity, len(want.PerModelMeanPolarity))
	for m, mean := range want.PerModelMeanPolarity {
		assert.InDelta(t, mean, got.PerModelMeanPolarity[m], 1e-9, m)
	}
	assert.InDelta(t, want.Divergence, got.Divergence, 1e-9)
}

func TestComputeIncrementalLeavesPrev(t *testing.T) {
	prev := NewWindow(t0, t0.Add(time.Hour))
	prev.Add(scored("a", t0, map[string]float64{"M": 1}))

	next := ComputeIncremental(prev, []types.Headline{
		scored("a", t0, map[string]float64{"M": -1}),
		scored("b", t0.Add(time.Minute), map[string]float64{"M": 0.5}),
		scored("late", t0.Add(time.Hour), map[string]float64{"M": 1}),
	})

	assert.Equal(t, 1, prev.Count())
	assert.InDelta(t, 1.0, prev.Summary().PerModelMeanPolarity["M"], 1e-12)
	assert.Equal(t, 2, next.Count())
	assert.InDelta(t, -0.25, next.Summary().PerModelMeanPolarity["M"], 1e-12)
}

func TestSummaryDeterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	_, final := history(r, 200)
	hs := make([]types.Headline, 0, len(final))
	for _, h := range final {
		hs = append(hs, h)
	}

	a := NewWindow(t0, t0.Add(4*time.Hour))
	a.Apply(hs)
	b := NewWindow(t0, t0.Add(4*time.Hour))
	b.Apply(hs)
	assert.Equal(t, a.Summary(), b.Summary())
}

func TestSeries(t *testing.T) {
	st := openStore(t)
	put(t, st, scored("a", t0, map[string]float64{"M": 1}))
	put(t, st, scored("b", t0.Add(90*time.Minute), map[string]float64{"M": -0.5}))
	put(t, st, scored("c", t0.Add(150*time.Minute), map[string]float64{"M": 0.2}))
	put(t, st, scored("outside", t0.Add(-time.Minute), map[string]float64{"M": 1}))

	agg := NewAggregator(st, types.TrendConfig{})
	series, err := agg.Series(context.Background(), t0, t0.Add(150*time.Minute), time.Hour)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, 1, series[0].Count)
	assert.Equal(t, 1, series[1].Count)
	assert.InDelta(t, -0.5, series[1].PerModelMeanPolarity["M"], 1e-12)
	assert.Equal(t, 0, series[2].Count, "c sits at the exclusive end")
	assert.Equal(t, t0.Add(150*time.Minute), series[2].WindowEnd, "last window is cut at to")
	assert.Empty(t, series[2].PerModelMeanPolarity)
	assert.Equal(t, 1.0, series[2].AgreementScore)

	w, err := agg.ComputeWindow(context.Background(), t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, w.Summary(), series[1])
}

func TestSeriesLimits(t *testing.T) {
	agg := NewAggregator(openStore(t), types.TrendConfig{MaxSeriesWindows: 10})

	_, err := agg.Series(context.Background(), t0, t0.Add(11*time.Hour), time.Hour)
	assert.True(t, eris.Is(err, ErrInvalidRange))

	_, err = agg.Series(context.Background(), t0, t0.Add(time.Hour), 0)
	assert.True(t, eris.Is(err, ErrInvalidRange))

	_, err = agg.Series(context.Background(), t0, t0.Add(-time.Hour), time.Hour)
	assert.True(t, eris.Is(err, ErrInvalidRange))

	series, err := agg.Series(context.Background(), t0, t0.Add(10*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Len(t, series, 10)
}

func TestTrackerFollowsChanges(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	put(t, st, scored("a", t0.Add(10*time.Minute), map[string]float64{"M": 1}))

	tr := NewTracker(st, types.TrendConfig{Window: time.Hour, KeepWindows: 3})
	now := t0.Add(2*time.Hour + 5*time.Minute)
	require.NoError(t, tr.Restore(ctx, now))

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, t0, snap[0].WindowStart)
	assert.Equal(t, t0.Add(3*time.Hour), snap[2].WindowEnd)
	assert.Equal(t, 1, snap[0].Count)

	// A new headline, then a second model scoring an existing one.
	put(t, st, scored("b", t0.Add(2*time.Hour+1*time.Minute), map[string]float64{"M": -0.5}))
	require.NoError(t, st.PutScore(ctx, "a", types.SentimentScore{Model: "N", Label: types.LabelNegative, Polarity: -1, ScoredAt: now}))

	read, err := tr.Advance(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, read)

	seq, err := st.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, seq, tr.Seq())

	agg := NewAggregator(st, types.TrendConfig{})
	for _, got := range tr.Snapshot() {
		w, err := agg.ComputeWindow(ctx, got.WindowStart, got.WindowEnd)
		require.NoError(t, err)
		assert.Equal(t, w.Summary(), got)
	}

	// Nothing changed since.
	read, err = tr.Advance(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, read)
}

func TestTrackerRolls(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	put(t, st, scored("a", t0.Add(10*time.Minute), map[string]float64{"M": 1}))

	tr := NewTracker(st, types.TrendConfig{Window: time.Hour, KeepWindows: 2})
	require.NoError(t, tr.Restore(ctx, t0.Add(30*time.Minute)))
	require.Len(t, tr.Snapshot(), 2)

	put(t, st, scored("b", t0.Add(65*time.Minute), map[string]float64{"M": 0.5}))
	_, err := tr.Advance(ctx, t0.Add(70*time.Minute))
	require.NoError(t, err)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, t0, snap[0].WindowStart)
	assert.Equal(t, 1, snap[0].Count)
	assert.Equal(t, t0.Add(time.Hour), snap[1].WindowStart)
	assert.Equal(t, 1, snap[1].Count)

	// A long pause replaces every window.
	_, err = tr.Advance(ctx, t0.Add(10*time.Hour))
	require.NoError(t, err)
	snap = tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, t0.Add(9*time.Hour), snap[0].WindowStart)
	assert.Equal(t, 0, snap[1].Count)
}
