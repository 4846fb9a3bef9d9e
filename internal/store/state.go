// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// LoadCycleState returns the saved pipeline state, or a fresh state when
// none has been saved yet.
func (s *Store) LoadCycleState(ctx context.Context) (types.CycleState, error) {
	query, args, err := s.sb.Select("body").From("cycle_state").Where(sq.Eq{"name": cycleStateName}).ToSql()
	if err != nil {
		return types.CycleState{}, eris.Wrap(err, "building state select")
	}

	var body string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewCycleState(), nil
	}
	if err != nil {
		return types.CycleState{}, s.classify(err, "load cycle state")
	}

	st := types.NewCycleState()
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return types.CycleState{}, eris.Wrap(err, "decoding cycle state")
	}
	if st.Sources == nil {
		st.Sources = make(map[string]types.RunState)
	}
	if st.Models == nil {
		st.Models = make(map[string]types.RunState)
	}
	return st, nil
}

// SaveCycleState replaces the saved pipeline state.
func (s *Store) SaveCycleState(ctx context.Context, st types.CycleState) error {
	body, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "encoding cycle state")
	}

	query, args, err := s.sb.Insert("cycle_state").
		Columns("name", "body", "updated_at").
		Values(cycleStateName, string(body), toNanos(time.Now())).
		Suffix("ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "building state upsert")
	}

	return s.withRetry(ctx, "save cycle state", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// SavePrices upserts daily prices keyed by UTC day.
func (s *Store) SavePrices(ctx context.Context, points []types.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	ins := s.sb.Insert("prices").Columns("day", "usd")
	for _, p := range points {
		ins = ins.Values(toNanos(truncateDay(p.Day)), p.USD)
	}
	query, args, err := ins.Suffix("ON CONFLICT (day) DO UPDATE SET usd = excluded.usd").ToSql()
	if err != nil {
		return eris.Wrap(err, "building price upsert")
	}

	return s.withRetry(ctx, "save prices", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Prices returns daily prices with day in [from, to), ordered by day.
func (s *Store) Prices(ctx context.Context, from, to time.Time) ([]types.PricePoint, error) {
	sel := s.sb.Select("day", "usd").From("prices").OrderBy("day ASC")
	if !from.IsZero() {
		sel = sel.Where(sq.GtOrEq{"day": toNanos(truncateDay(from))})
	}
	if !to.IsZero() {
		sel = sel.Where(sq.Lt{"day": toNanos(to)})
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "building price select")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.classify(err, "select prices")
	}
	defer rows.Close()

	var out []types.PricePoint
	for rows.Next() {
		var (
			day int64
			usd float64
		)
		if err := rows.Scan(&day, &usd); err != nil {
			return nil, s.classify(err, "scan price")
		}
		out = append(out, types.PricePoint{Day: fromNanos(day), USD: usd})
	}
	return out, s.classify(rows.Err(), "iterate prices")
}

// Stats summarizes store contents.
type Stats struct {
	Headlines         int            `json:"headlines" yaml:"headlines"`
	HeadlinesBySource map[string]int `json:"headlines_by_source" yaml:"headlines_by_source"`
	ScoresByModel     map[string]int `json:"scores_by_model" yaml:"scores_by_model"`
	Oldest            time.Time      `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest            time.Time      `json:"newest,omitempty" yaml:"newest,omitempty"`
}

// Stats counts headlines per source and scores per model.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		HeadlinesBySource: make(map[string]int),
		ScoresByModel:     make(map[string]int),
	}

	if err := s.groupCount(ctx, "SELECT source, COUNT(*) FROM headlines GROUP BY source", st.HeadlinesBySource); err != nil {
		return Stats{}, err
	}
	if err := s.groupCount(ctx, "SELECT model, COUNT(*) FROM scores GROUP BY model", st.ScoresByModel); err != nil {
		return Stats{}, err
	}
	for _, n := range st.HeadlinesBySource {
		st.Headlines += n
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MIN(published_at), MAX(published_at) FROM headlines").Scan(&oldest, &newest)
	if err != nil {
		return Stats{}, s.classify(err, "stats range")
	}
	if oldest.Valid {
		st.Oldest = fromNanos(oldest.Int64)
		st.Newest = fromNanos(newest.Int64)
	}
	return st, nil
}

func (s *Store) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return s.classify(err, "stats")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return s.classify(err, "stats scan")
		}
		into[key] = n
	}
	return s.classify(rows.Err(), "stats iterate")
}

func truncateDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Unscored counts, per model, the headlines that have no score from it.
func (s *Store) Unscored(ctx context.Context, models []string) (map[string]int, error) {
	out := make(map[string]int, len(models))
	for _, m := range models {
		query, args, err := s.sb.Select("COUNT(*)").From("headlines h").
			Where(sq.Expr("NOT EXISTS (SELECT 1 FROM scores s WHERE s.headline_id = h.id AND s.model = ?)", m)).
			ToSql()
		if err != nil {
			return nil, eris.Wrap(err, "building unscored count")
		}
		var n int
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, s.classify(err, "unscored count")
		}
		out[m] = n
	}
	return out, nil
}
