// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package market

import (
	"context"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pdiddy/headline-sentiment/internal/trend"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

const day = 24 * time.Hour

// MinPairs is the fewest (sentiment, return) days a coefficient is computed from.
const MinPairs = 3

const (
	// SignificanceLevel is the two-sided p-value below which a coefficient
	// counts as significant.
	SignificanceLevel = 0.05

	// BullishThreshold is the daily mean polarity above which a day is read
	// as a call for a rising price.
	BullishThreshold = 0.1
)

// DefaultLags compares sentiment against the same day's return and the next day's.
var DefaultLags = []int{0, 1}

// Correlation relates one model's daily mean polarity to the daily price
// return Lag days later. Coefficient, PValue and Accuracy are nil when
// fewer than MinPairs days pair up; Coefficient and PValue also when
// either series is constant.
type Correlation struct {
	Model       string   `json:"model" yaml:"model"`
	Lag         int      `json:"lag_days" yaml:"lag_days"`
	N           int      `json:"n" yaml:"n"`
	Coefficient *float64 `json:"coefficient" yaml:"coefficient"`
	PValue      *float64 `json:"p_value" yaml:"p_value"`
	Significant bool     `json:"significant" yaml:"significant"`

	// Accuracy is the share of days where polarity above BullishThreshold
	// coincided with a positive return, or polarity at or below it with a
	// flat or negative one.
	Accuracy *float64 `json:"accuracy" yaml:"accuracy"`
}

// Store is what Correlate reads: headlines for the daily trend and the
// stored prices.
type Store interface {
	trend.Store
	Prices(ctx context.Context, from, to time.Time) ([]types.PricePoint, error)
}

// Correlate computes daily trend windows over the UTC days covering
// [from, to) and correlates them with the stored prices at each lag.
// Empty lags mean DefaultLags.
func Correlate(ctx context.Context, st Store, from, to time.Time, lags []int) ([]Correlation, error) {
	lags, err := normalizeLags(lags)
	if err != nil {
		return nil, err
	}
	from = from.UTC().Truncate(day)
	if end := to.UTC().Truncate(day); end.Before(to) {
		to = end.Add(day)
	} else {
		to = end
	}
	if !to.After(from) {
		return nil, eris.Wrapf(trend.ErrInvalidRange, "correlation range %s to %s", from, to)
	}

	days := int(to.Sub(from) / day)
	agg := trend.NewAggregator(st, types.TrendConfig{Window: day, MaxSeriesWindows: days})
	windows, err := agg.Series(ctx, from, to, day)
	if err != nil {
		return nil, err
	}

	// One day before for the first return, and the lag days after.
	prices, err := st.Prices(ctx, from.Add(-day), to.Add(time.Duration(lags[len(lags)-1])*day))
	if err != nil {
		return nil, eris.Wrap(err, "loading prices")
	}
	return Compute(windows, prices, lags), nil
}

// normalizeLags sorts and dedups lags, defaulting an empty list.
func normalizeLags(lags []int) ([]int, error) {
	if len(lags) == 0 {
		return DefaultLags, nil
	}
	out := slices.Clone(lags)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] < 0 || out[len(out)-1] > MaxDays {
		return nil, eris.Errorf("lags must lie in 0..%d, got %v", MaxDays, lags)
	}
	return out, nil
}

// Compute correlates each model seen in windows against the daily returns
// derived from prices, for every lag. Windows are expected to be one UTC
// day wide. Days without a score for the model are skipped. Empty lags
// mean DefaultLags; negative lags are ignored.
func Compute(windows []types.TrendWindow, prices []types.PricePoint, lags []int) []Correlation {
	if len(lags) == 0 {
		lags = DefaultLags
	}
	returns := dailyReturns(prices)

	seen := make(map[string]bool)
	for _, w := range windows {
		for _, m := range w.Models() {
			seen[m] = true
		}
	}
	models := make([]string, 0, len(seen))
	for m := range seen {
		models = append(models, m)
	}
	sort.Strings(models)

	var out []Correlation
	for _, m := range models {
		for _, lag := range lags {
			if lag < 0 {
				continue
			}
			var xs, ys []float64
			for _, w := range windows {
				if w.PerModelCount[m] == 0 {
					continue
				}
				r, ok := returns[w.WindowStart.UTC().Truncate(day).Add(time.Duration(lag)*day)]
				if !ok {
					continue
				}
				xs = append(xs, w.PerModelMeanPolarity[m])
				ys = append(ys, r)
			}
			out = append(out, correlate(m, lag, xs, ys))
		}
	}
	return out
}

func correlate(model string, lag int, xs, ys []float64) Correlation {
	c := Correlation{Model: model, Lag: lag, N: len(xs)}
	if len(xs) < MinPairs {
		return c
	}
	acc := Accuracy(xs, ys)
	c.Accuracy = &acc
	if r, ok := Pearson(xs, ys); ok {
		p := PValue(r, len(xs))
		c.Coefficient = &r
		c.PValue = &p
		c.Significant = p < SignificanceLevel
	}
	return c
}

// Accuracy is the share of pairs where xs[i] > BullishThreshold agrees
// with ys[i] > 0.
func Accuracy(xs, ys []float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0
	}
	hits := 0
	for i := range xs {
		if (xs[i] > BullishThreshold) == (ys[i] > 0) {
			hits++
		}
	}
	return float64(hits) / float64(len(xs))
}

// PValue is the two-sided p-value of a Pearson coefficient r over n pairs,
// from the t statistic with n-2 degrees of freedom.
func PValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := math.Abs(r) * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(t)
}

// dailyReturns maps each day to its fractional change from the previous
// calendar day. Days whose previous day has no price are left out.
func dailyReturns(prices []types.PricePoint) map[time.Time]float64 {
	byDay := make(map[time.Time]float64, len(prices))
	for _, p := range prices {
		byDay[p.Day.UTC().Truncate(day)] = p.USD
	}
	out := make(map[time.Time]float64, len(byDay))
	for d, usd := range byDay {
		prev, ok := byDay[d.Add(-day)]
		if !ok || prev == 0 {
			continue
		}
		out[d] = (usd - prev) / prev
	}
	return out
}

// Pearson returns the sample correlation coefficient of xs and ys. It
// reports false for mismatched or short inputs and for a constant series.
func Pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return 0, false
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r)), true
}
