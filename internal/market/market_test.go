// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/headline-sentiment/internal/httputil"
	"github.com/pdiddy/headline-sentiment/internal/store"
	"github.com/pdiddy/headline-sentiment/internal/trend"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

var d0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testClient() *httputil.Client {
	return httputil.NewClient(types.HTTPConfig{
		Timeout:    5 * time.Second,
		UserAgent:  "headline-sentiment-test",
		MaxRetries: 1,
	})
}

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

func ms(t time.Time) int64 { return t.UnixMilli() }

func TestDailyCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		assert.Equal(t, "daily", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"prices":[[%d,100.5],[%d,110],[%d,111],[%d,99]]}`,
			ms(d0), ms(d0.Add(24*time.Hour)), ms(d0.Add(30*time.Hour)), ms(d0.Add(48*time.Hour)))
	}))
	defer srv.Close()

	c := NewClient(types.MarketConfig{BaseURL: srv.URL + "/"}, testClient())
	got, err := c.DailyCloses(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []types.PricePoint{
		{Day: d0, USD: 100.5},
		{Day: d0.Add(24 * time.Hour), USD: 111},
		{Day: d0.Add(48 * time.Hour), USD: 99},
	}, got)
}

func TestDailyClosesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		bad    bool
	}{
		{name: "not json", status: 200, body: `<html>`, bad: true},
		{name: "missing prices", status: 200, body: `{"error":"coin not found"}`, bad: true},
		{name: "short entry", status: 200, body: `{"prices":[[1772323200000]]}`, bad: true},
		{name: "zero price", status: 200, body: `{"prices":[[1772323200000,0]]}`, bad: true},
		{name: "not found", status: 404, body: `{"error":"coin not found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(types.MarketConfig{BaseURL: srv.URL}, testClient()).DailyCloses(context.Background(), 7)
			require.Error(t, err)
			assert.Equal(t, tt.bad, eris.Is(err, ErrBadResponse))
		})
	}

	_, err := NewClient(types.MarketConfig{}, testClient()).DailyCloses(context.Background(), 0)
	assert.Error(t, err)
}

func TestDailyClosesCapsDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "365", r.URL.Query().Get("days"))
		fmt.Fprint(w, `{"prices":[]}`)
	}))
	defer srv.Close()

	got, err := NewClient(types.MarketConfig{BaseURL: srv.URL}, testClient()).DailyCloses(context.Background(), 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"prices":[[%d,100],[%d,105]]}`, ms(d0.Add(time.Hour)), ms(d0.Add(25*time.Hour)))
	}))
	defer srv.Close()

	st := openStore(t)
	ctx := context.Background()
	points, err := Sync(ctx, NewClient(types.MarketConfig{BaseURL: srv.URL}, testClient()), st, 2)
	require.NoError(t, err)
	require.Len(t, points, 2)

	stored, err := st.Prices(ctx, d0, d0.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].Day.Equal(d0))
	assert.InDelta(t, 105, stored[1].USD, 1e-12)
}

func TestPearson(t *testing.T) {
	r, ok := Pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.True(t, ok)
	assert.InDelta(t, 1, r, 1e-12)

	r, ok = Pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1, r, 1e-12)

	_, ok = Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.False(t, ok, "constant series")
	_, ok = Pearson([]float64{1, 2}, []float64{1})
	assert.False(t, ok, "length mismatch")
	_, ok = Pearson([]float64{1}, []float64{1})
	assert.False(t, ok, "single point")
}

func TestPValue(t *testing.T) {
	assert.InDelta(t, 1, PValue(0, 10), 1e-12)
	assert.Equal(t, 0.0, PValue(1, 5))
	assert.Equal(t, 1.0, PValue(0.9, 2), "too few pairs")
	// r = 0.5 over 10 pairs: t = 1.633 on 8 degrees of freedom.
	assert.InDelta(t, 0.1411, PValue(0.5, 10), 1e-3)
	assert.Equal(t, PValue(0.5, 10), PValue(-0.5, 10))
}

func TestAccuracy(t *testing.T) {
	xs := []float64{0.5, 0.05, -0.4, 0.2}
	ys := []float64{0.02, -0.01, 0.03, 0}
	// Hit, hit (not bullish, fell), miss, miss (bullish, flat).
	assert.InDelta(t, 0.5, Accuracy(xs, ys), 1e-12)
	assert.Zero(t, Accuracy(nil, nil))
	assert.Zero(t, Accuracy([]float64{1}, nil))
}

func TestNormalizeLags(t *testing.T) {
	got, err := normalizeLags(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLags, got)

	got, err = normalizeLags([]int{3, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, got)

	_, err = normalizeLags([]int{0, MaxDays + 1})
	assert.Error(t, err)
}

// Prices 100, 110, 99, 99, 108.9 give returns +10%, -10%, 0, +10% on
// days 1 to 4. Lexicon sentiment on those days is five times the return,
// so the same-day coefficient is 1.
var (
	testPrices = []types.PricePoint{
		{Day: d0, USD: 100},
		{Day: d0.Add(1 * day), USD: 110},
		{Day: d0.Add(2 * day), USD: 99},
		{Day: d0.Add(3 * day), USD: 99},
		{Day: d0.Add(4 * day), USD: 108.9},
	}
	testPolarity = []float64{0.5, -0.5, 0, 0.5}
)

func dailyWindow(i int, means map[string]float64) types.TrendWindow {
	counts := make(map[string]int, len(means))
	for m := range means {
		counts[m] = 1
	}
	return types.TrendWindow{
		WindowStart:          d0.Add(time.Duration(i) * day),
		WindowEnd:            d0.Add(time.Duration(i+1) * day),
		PerModelMeanPolarity: means,
		PerModelCount:        counts,
		Count:                1,
	}
}

func assertLexicon(t *testing.T, got []Correlation) {
	t.Helper()
	var lexicon []Correlation
	for _, c := range got {
		if c.Model == "lexicon" {
			lexicon = append(lexicon, c)
		}
	}
	require.Len(t, lexicon, 2)

	same := lexicon[0]
	assert.Equal(t, 0, same.Lag)
	assert.Equal(t, 4, same.N)
	require.NotNil(t, same.Coefficient)
	assert.InDelta(t, 1, *same.Coefficient, 1e-9)
	require.NotNil(t, same.PValue)
	assert.InDelta(t, 0, *same.PValue, 1e-9)
	assert.True(t, same.Significant)
	require.NotNil(t, same.Accuracy)
	assert.InDelta(t, 1, *same.Accuracy, 1e-12)

	// Days 1-3 paired with the returns of days 2-4. With one degree of
	// freedom t is Cauchy, so r = -0.5 gives p = 2/3 exactly.
	next := lexicon[1]
	assert.Equal(t, 1, next.Lag)
	assert.Equal(t, 3, next.N)
	require.NotNil(t, next.Coefficient)
	assert.InDelta(t, -0.5, *next.Coefficient, 1e-9)
	require.NotNil(t, next.PValue)
	assert.InDelta(t, 2.0/3, *next.PValue, 1e-9)
	assert.False(t, next.Significant)
	require.NotNil(t, next.Accuracy)
	assert.InDelta(t, 1.0/3, *next.Accuracy, 1e-12)
}

func TestCompute(t *testing.T) {
	windows := []types.TrendWindow{
		dailyWindow(1, map[string]float64{"lexicon": testPolarity[0], "finbert": 0.2}),
		dailyWindow(2, map[string]float64{"lexicon": testPolarity[1], "finbert": 0.1}),
		dailyWindow(3, map[string]float64{"lexicon": testPolarity[2]}),
		dailyWindow(4, map[string]float64{"lexicon": testPolarity[3]}),
		{WindowStart: d0.Add(5 * day), WindowEnd: d0.Add(6 * day)},
	}

	got := Compute(windows, testPrices, nil)
	require.Len(t, got, 4)
	assert.Equal(t, "finbert", got[0].Model)
	assert.Equal(t, 2, got[0].N)
	assert.Nil(t, got[0].Coefficient, "too few pairs")
	assert.Nil(t, got[0].PValue)
	assert.Nil(t, got[0].Accuracy)
	assertLexicon(t, got)

	// Days 1 and 2 pair with the returns of days 3 and 4; day 3 has no
	// price two days on.
	got = Compute(windows, testPrices, []int{2})
	require.Len(t, got, 2)
	assert.Equal(t, "lexicon", got[1].Model)
	assert.Equal(t, 2, got[1].Lag)
	assert.Equal(t, 2, got[1].N)
}

func TestComputeMissingPrices(t *testing.T) {
	windows := []types.TrendWindow{dailyWindow(1, map[string]float64{"lexicon": 0.3})}
	got := Compute(windows, nil, nil)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Zero(t, c.N)
		assert.Nil(t, c.Coefficient)
	}
	assert.Empty(t, Compute(nil, testPrices, nil))
}

func TestCorrelate(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.SavePrices(ctx, testPrices))

	for i, p := range testPolarity {
		id := fmt.Sprintf("h%d", i)
		at := d0.Add(time.Duration(i+1)*day + 12*time.Hour)
		_, err := st.InsertIfAbsent(ctx, &types.Headline{
			ID:             id,
			Source:         "coindesk",
			Title:          "Bitcoin " + id,
			PublishedAt:    at,
			TimeProvenance: types.ProvenanceSource,
			IngestedAt:     at,
		})
		require.NoError(t, err)
		require.NoError(t, st.PutScore(ctx, id, types.SentimentScore{
			Model: "lexicon", Label: types.LabelNeutral, Polarity: p, ScoredAt: at,
		}))
	}

	got, err := Correlate(ctx, st, d0.Add(day+3*time.Hour), d0.Add(4*day+time.Hour), []int{1, 0, 1})
	require.NoError(t, err)
	assertLexicon(t, got)

	_, err = Correlate(ctx, st, d0.Add(2*day), d0.Add(day), nil)
	assert.True(t, eris.Is(err, trend.ErrInvalidRange))

	_, err = Correlate(ctx, st, d0, d0.Add(day), []int{-1})
	assert.Error(t, err)
}
