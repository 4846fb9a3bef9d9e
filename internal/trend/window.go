// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trend aggregates scored headlines into time windows of per-model
// mean polarity and inter-model agreement.
package trend

import (
	"sort"
	"time"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Window accumulates the headlines published in [Start, End). It keeps
// each (model, headline) contribution so a headline delivered again, or
// rescored, replaces its earlier contribution instead of adding to it.
type Window struct {
	Start time.Time
	End   time.Time

	headlines map[string]struct{}
	contrib   map[string]map[string]float64
	sums      map[string]float64
}

// NewWindow returns an empty window over [start, end).
func NewWindow(start, end time.Time) *Window {
	return &Window{
		Start:     start.UTC(),
		End:       end.UTC(),
		headlines: make(map[string]struct{}),
		contrib:   make(map[string]map[string]float64),
		sums:      make(map[string]float64),
	}
}

// Contains reports whether t falls in [Start, End).
func (w *Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Add folds h into the window. Headlines published outside the window are
// ignored and reported false.
func (w *Window) Add(h types.Headline) bool {
	if !w.Contains(h.PublishedAt) {
		return false
	}
	w.headlines[h.ID] = struct{}{}
	for model, s := range h.Scores {
		byHeadline, ok := w.contrib[model]
		if !ok {
			byHeadline = make(map[string]float64)
			w.contrib[model] = byHeadline
		}
		if old, seen := byHeadline[h.ID]; seen {
			w.sums[model] -= old
		}
		byHeadline[h.ID] = s.Polarity
		w.sums[model] += s.Polarity
	}
	return true
}

// Apply folds every headline of hs into the window and returns how many
// fell inside it.
func (w *Window) Apply(hs []types.Headline) int {
	n := 0
	for _, h := range hs {
		if w.Add(h) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of w.
func (w *Window) Clone() *Window {
	out := NewWindow(w.Start, w.End)
	for id := range w.headlines {
		out.headlines[id] = struct{}{}
	}
	for model, byHeadline := range w.contrib {
		cp := make(map[string]float64, len(byHeadline))
		for id, p := range byHeadline {
			cp[id] = p
		}
		out.contrib[model] = cp
	}
	for model, s := range w.sums {
		out.sums[model] = s
	}
	return out
}

// Count is the number of headlines in the window, scored or not.
func (w *Window) Count() int { return len(w.headlines) }

// Summary returns the window's TrendWindow.
func (w *Window) Summary() types.TrendWindow {
	tw := types.TrendWindow{
		WindowStart:          w.Start,
		WindowEnd:            w.End,
		PerModelMeanPolarity: make(map[string]float64, len(w.contrib)),
		PerModelCount:        make(map[string]int, len(w.contrib)),
		Count:                len(w.headlines),
	}
	for model, byHeadline := range w.contrib {
		n := len(byHeadline)
		if n == 0 {
			continue
		}
		tw.PerModelMeanPolarity[model] = w.sums[model] / float64(n)
		tw.PerModelCount[model] = n
	}
	tw.Divergence = Divergence(tw.PerModelMeanPolarity)
	tw.AgreementScore = 1 - tw.Divergence
	return tw
}

// Divergence is the mean over model pairs of (mi - mj)^2 / 4. Means lie in
// [-1, 1], so the result lies in [0, 1]. Fewer than two models diverge by 0.
func Divergence(means map[string]float64) float64 {
	models := make([]string, 0, len(means))
	for m := range means {
		models = append(models, m)
	}
	if len(models) < 2 {
		return 0
	}
	sort.Strings(models)

	var total float64
	pairs := 0
	for i := 0; i < len(models); i++ {
		for j := i + 1; j < len(models); j++ {
			d := means[models[i]] - means[models[j]]
			total += d * d / 4
			pairs++
		}
	}
	return total / float64(pairs)
}

// ComputeIncremental returns prev updated with newHeadlines. prev is not
// modified. Headlines already folded into prev replace their earlier
// contributions, so the result matches a full recompute over the union.
func ComputeIncremental(prev *Window, newHeadlines []types.Headline) *Window {
	next := prev.Clone()
	next.Apply(newHeadlines)
	return next
}
