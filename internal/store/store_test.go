// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), types.StoreConfig{
		Driver: types.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "db", "headlines.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleHeadline(id, source string, published time.Time) *types.Headline {
	return &types.Headline{
		ID:             id,
		Source:         source,
		Title:          "Bitcoin " + id,
		URL:            "https://example.com/" + id,
		PublishedAt:    published,
		TimeProvenance: types.ProvenanceSource,
		IngestedAt:     published.Add(time.Minute),
	}
}

func score(model string, polarity float64, label types.Label) types.SentimentScore {
	c := 0.9
	return types.SentimentScore{
		Model:      model,
		Label:      label,
		Polarity:   polarity,
		Confidence: &c,
		ScoredAt:   base.Add(time.Hour),
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTest(t)
	assert.Equal(t, "sqlite", s.Driver())
	require.NoError(t, s.Ping(context.Background()))

	for _, table := range []string{"headlines", "scores", "cycle_state", "prices"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	// Migrate is idempotent.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(context.Background(), types.StoreConfig{Driver: "oracle"})
	assert.Error(t, err)

	_, err = Open(context.Background(), types.StoreConfig{Driver: types.DriverPostgres})
	assert.Error(t, err)
}

func TestInsertIfAbsent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	h := sampleHeadline("a1", "feedA", base)
	inserted, err := s.InsertIfAbsent(ctx, h)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := sampleHeadline("a1", "feedB", base.Add(time.Hour))
	dup.Title = "different title"
	inserted, err = s.InsertIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.Headline(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "feedA", got.Source, "first observation wins")
	assert.Equal(t, h.Title, got.Title)
	assert.True(t, got.PublishedAt.Equal(base))
	assert.True(t, got.IngestedAt.Equal(h.IngestedAt))
	assert.Equal(t, types.ProvenanceSource, got.TimeProvenance)
	assert.Empty(t, got.Scores)
}

func TestInsertIfAbsentRequiresID(t *testing.T) {
	s := openTest(t)
	_, err := s.InsertIfAbsent(context.Background(), &types.Headline{})
	assert.Error(t, err)
}

func TestInsertIfAbsentConcurrent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.InsertIfAbsent(ctx, sampleHeadline("same", "feed", base))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
}

func TestInsertAndScoreConcurrent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	orig := sampleHeadline("x", "feed", base)
	_, err := s.InsertIfAbsent(ctx, orig)
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h := sampleHeadline("x", "other", base)
			h.Title = fmt.Sprintf("Bitcoin rewritten %d", i)
			ok, err := s.InsertIfAbsent(ctx, h)
			assert.NoError(t, err)
			assert.False(t, ok)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.PutScore(ctx, "x", score(fmt.Sprintf("m%d", i%10), 0.1, types.LabelPositive)))
		}()
	}
	wg.Wait()

	got, err := s.Headline(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, orig.Title, got.Title, "first write wins")
	assert.Equal(t, "feed", got.Source)
	assert.Len(t, got.Scores, 10, "no score write lost")
}

func TestHeadlineNotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.Headline(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPutScore(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_, err := s.InsertIfAbsent(ctx, sampleHeadline("a1", "feed", base))
	require.NoError(t, err)

	require.NoError(t, s.PutScore(ctx, "a1", score("lexicon", 0.5, types.LabelPositive)))
	noConf := types.SentimentScore{Model: "finbert", Label: types.LabelNegative, Polarity: -0.7, ScoredAt: base}
	require.NoError(t, s.PutScore(ctx, "a1", noConf))

	got, err := s.Headline(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got.Scores, 2)
	assert.InDelta(t, 0.5, got.Scores["lexicon"].Polarity, 1e-12)
	require.NotNil(t, got.Scores["lexicon"].Confidence)
	assert.InDelta(t, 0.9, *got.Scores["lexicon"].Confidence, 1e-12)
	assert.Nil(t, got.Scores["finbert"].Confidence)
	assert.Equal(t, types.LabelNegative, got.Scores["finbert"].Label)

	// Rescoring replaces the earlier score.
	require.NoError(t, s.PutScore(ctx, "a1", score("lexicon", -0.2, types.LabelNegative)))
	got, err = s.Headline(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, got.Scores, 2)
	assert.InDelta(t, -0.2, got.Scores["lexicon"].Polarity, 1e-12)
}

func TestPutScoreErrors(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	err := s.PutScore(ctx, "missing", score("lexicon", 0, types.LabelNeutral))
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.False(t, IsUnavailable(err))

	_, err = s.InsertIfAbsent(ctx, sampleHeadline("a1", "feed", base))
	require.NoError(t, err)
	assert.Error(t, s.PutScore(ctx, "a1", types.SentimentScore{Label: types.LabelNeutral}))
	assert.Error(t, s.PutScore(ctx, "a1", types.SentimentScore{Model: "m", Label: "bullish"}))
}

func TestHeadlinesQuery(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		src := "feedA"
		if i%2 == 1 {
			src = "feedB"
		}
		_, err := s.InsertIfAbsent(ctx, sampleHeadline(fmt.Sprintf("h%d", i), src, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	require.NoError(t, s.PutScore(ctx, "h1", score("lexicon", 0.1, types.LabelPositive)))
	require.NoError(t, s.PutScore(ctx, "h3", score("lexicon", 0.1, types.LabelPositive)))
	require.NoError(t, s.PutScore(ctx, "h3", score("finbert", 0.3, types.LabelPositive)))

	all, err := s.Headlines(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"h0", "h1", "h2", "h3", "h4"}, ids(all))
	assert.Len(t, all[3].Scores, 2)

	ranged, err := s.Headlines(ctx, Query{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2"}, ids(ranged))

	bySource, err := s.Headlines(ctx, Query{Source: "feedB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h3"}, ids(bySource))

	byModel, err := s.Headlines(ctx, Query{Model: "finbert"})
	require.NoError(t, err)
	assert.Equal(t, []string{"h3"}, ids(byModel))
	assert.Len(t, byModel[0].Scores, 2, "model filter keeps every score of a match")

	newest, err := s.Headlines(ctx, Query{Newest: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"h4", "h3"}, ids(newest))
}

func TestPending(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.InsertIfAbsent(ctx, sampleHeadline(fmt.Sprintf("h%d", i), "feed", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	models := []string{"lexicon", "finbert"}

	require.NoError(t, s.PutScore(ctx, "h0", score("lexicon", 0, types.LabelNeutral)))
	require.NoError(t, s.PutScore(ctx, "h0", score("finbert", 0, types.LabelNeutral)))
	require.NoError(t, s.PutScore(ctx, "h1", score("lexicon", 0, types.LabelNeutral)))
	// A score from a model outside the configured set does not count.
	require.NoError(t, s.PutScore(ctx, "h2", score("retired", 0, types.LabelNeutral)))

	pending, err := s.Pending(ctx, models, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"h2", "h1"}, ids(pending), "newest ingested first")
	assert.Equal(t, []string{"finbert"}, pending[1].MissingModels(models))

	limited, err := s.Pending(ctx, models, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"h2"}, ids(limited))

	none, err := s.Pending(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChangedSince(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	hs, seq, err := s.ChangedSince(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, hs)
	assert.Equal(t, int64(0), seq)

	for i := 0; i < 3; i++ {
		_, err := s.InsertIfAbsent(ctx, sampleHeadline(fmt.Sprintf("h%d", i), "feed", base))
		require.NoError(t, err)
	}
	hs, seq, err = s.ChangedSince(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0", "h1", "h2"}, ids(hs))
	maxSeq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, maxSeq, seq)

	// Scoring h0 moves it past the watermark.
	require.NoError(t, s.PutScore(ctx, "h0", score("lexicon", 0.4, types.LabelPositive)))
	hs, next, err := s.ChangedSince(ctx, seq, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0"}, ids(hs))
	assert.Greater(t, next, seq)
	assert.Contains(t, hs[0].Scores, "lexicon")

	hs, same, err := s.ChangedSince(ctx, next, 0)
	require.NoError(t, err)
	assert.Empty(t, hs)
	assert.Equal(t, next, same)
}

func TestCycleStateRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	st, err := s.LoadCycleState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Cycle)
	assert.NotNil(t, st.Sources)

	st.Cycle = 3
	st.CycleID = "c-3"
	st.ChangeSeq = 42
	st.LastPollAt = base
	rs := st.Sources["feed"]
	rs.Record(base, errors.New("timeout"))
	st.Sources["feed"] = rs
	require.NoError(t, s.SaveCycleState(ctx, st))

	st.Cycle = 4
	require.NoError(t, s.SaveCycleState(ctx, st))

	got, err := s.LoadCycleState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Cycle)
	assert.Equal(t, int64(42), got.ChangeSeq)
	assert.True(t, got.LastPollAt.Equal(base))
	assert.Equal(t, 1, got.Sources["feed"].ConsecutiveFailures)
	assert.Equal(t, "timeout", got.Sources["feed"].LastError)
	assert.NotNil(t, got.Models)
}

func TestPrices(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SavePrices(ctx, nil))
	require.NoError(t, s.SavePrices(ctx, []types.PricePoint{
		{Day: base, USD: 60000},
		{Day: base.Add(24 * time.Hour), USD: 61000},
		{Day: base.Add(48 * time.Hour), USD: 59000},
	}))
	// Same day again overwrites.
	require.NoError(t, s.SavePrices(ctx, []types.PricePoint{{Day: base.Add(2 * time.Hour), USD: 60500}}))

	all, err := s.Prices(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 60500.0, all[0].USD)
	assert.True(t, all[0].Day.Equal(base.Truncate(24*time.Hour)))

	some, err := s.Prices(ctx, base.Add(24*time.Hour), base.Add(36*time.Hour))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, 61000.0, some[0].USD)
}

func TestStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Headlines)
	assert.True(t, empty.Oldest.IsZero())

	_, err = s.InsertIfAbsent(ctx, sampleHeadline("h0", "feedA", base))
	require.NoError(t, err)
	_, err = s.InsertIfAbsent(ctx, sampleHeadline("h1", "feedB", base.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, s.PutScore(ctx, "h0", score("lexicon", 0, types.LabelNeutral)))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Headlines)
	assert.Equal(t, map[string]int{"feedA": 1, "feedB": 1}, st.HeadlinesBySource)
	assert.Equal(t, map[string]int{"lexicon": 1}, st.ScoresByModel)
	assert.True(t, st.Oldest.Equal(base))
	assert.True(t, st.Newest.Equal(base.Add(time.Hour)))

	unscored, err := s.Unscored(ctx, []string{"lexicon", "finbert"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"lexicon": 1, "finbert": 2}, unscored)
}

func TestClassify(t *testing.T) {
	sqliteStore := &Store{dialect: sqliteDialect}
	pgStore := &Store{dialect: postgresDialect}

	assert.NoError(t, sqliteStore.classify(nil, "op"))
	assert.True(t, eris.Is(sqliteStore.classify(sqlite3.Error{Code: sqlite3.ErrBusy}, "op"), ErrConflict))
	assert.True(t, eris.Is(sqliteStore.classify(sqlite3.Error{Code: sqlite3.ErrLocked}, "op"), ErrConflict))
	assert.True(t, eris.Is(sqliteStore.classify(sqlite3.Error{Code: sqlite3.ErrIoErr}, "op"), ErrUnavailable))

	assert.True(t, eris.Is(pgStore.classify(&pgconn.PgError{Code: "40001"}, "op"), ErrConflict))
	assert.True(t, eris.Is(pgStore.classify(&pgconn.PgError{Code: "40P01"}, "op"), ErrConflict))
	assert.True(t, eris.Is(pgStore.classify(&pgconn.PgError{Code: "23505"}, "op"), ErrUnavailable))

	canceled := sqliteStore.classify(context.Canceled, "op")
	assert.True(t, errors.Is(canceled, context.Canceled))
	assert.False(t, IsUnavailable(canceled))

	notFound := eris.Wrap(ErrNotFound, "id x")
	assert.True(t, eris.Is(sqliteStore.classify(notFound, "op"), ErrNotFound))
}

func TestWithRetryConflictBecomesUnavailable(t *testing.T) {
	s := openTest(t)
	s.retry.InitialBackoff = time.Millisecond
	s.retry.MaxBackoff = time.Millisecond

	attempts := 0
	err := s.withRetry(context.Background(), "busy", func(context.Context) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, s.retry.MaxAttempts, attempts)

	attempts = 0
	err = s.withRetry(context.Background(), "clears", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func ids(hs []types.Headline) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.ID
	}
	return out
}
