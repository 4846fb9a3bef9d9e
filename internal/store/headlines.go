// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// Query selects headlines for the read surface. Zero values mean unbounded.
type Query struct {
	// From and To bound published_at to [From, To).
	From time.Time
	To   time.Time

	// Model keeps only headlines scored by this model.
	Model string

	Source string
	Limit  int

	// Newest orders by published_at descending instead of ascending.
	Newest bool
}

var headlineColumns = []string{
	"h.id", "h.source", "h.title", "h.url", "h.published_at",
	"h.time_provenance", "h.ingested_at", "h.seq",
}

var scoreColumns = []string{
	"s.model", "s.label", "s.polarity", "s.confidence", "s.scored_at",
}

// InsertIfAbsent stores h unless a headline with the same id exists.
// It reports whether a new row was written. An existing row is left
// untouched, so the first observation's title and timestamps win.
func (s *Store) InsertIfAbsent(ctx context.Context, h *types.Headline) (bool, error) {
	if h.ID == "" {
		return false, eris.New("store: headline has no id")
	}

	query, args, err := s.sb.Insert("headlines").
		Columns("id", "source", "title", "url", "published_at", "time_provenance", "ingested_at", "seq").
		Values(h.ID, h.Source, h.Title, h.URL, toNanos(h.PublishedAt), string(h.TimeProvenance), toNanos(h.IngestedAt), sq.Expr(s.dialect.nextSeq)).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, eris.Wrap(err, "building insert")
	}

	var inserted bool
	err = s.withRetry(ctx, "insert headline", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	return inserted, err
}

// Headline returns one headline with its scores.
func (s *Store) Headline(ctx context.Context, id string) (*types.Headline, error) {
	inner := sq.Select(headlineColumns...).From("headlines h").Where(sq.Eq{"h.id": id})
	hs, _, err := s.selectWithScores(ctx, inner, "h.id")
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return &hs[0], nil
}

// Headlines returns headlines matching q with their scores, ordered by
// published_at then id.
func (s *Store) Headlines(ctx context.Context, q Query) ([]types.Headline, error) {
	inner := sq.Select(headlineColumns...).From("headlines h")
	if !q.From.IsZero() {
		inner = inner.Where(sq.GtOrEq{"h.published_at": toNanos(q.From)})
	}
	if !q.To.IsZero() {
		inner = inner.Where(sq.Lt{"h.published_at": toNanos(q.To)})
	}
	if q.Source != "" {
		inner = inner.Where(sq.Eq{"h.source": q.Source})
	}
	if q.Model != "" {
		inner = inner.Where(sq.Expr("EXISTS (SELECT 1 FROM scores m WHERE m.headline_id = h.id AND m.model = ?)", q.Model))
	}

	order := "h.published_at ASC, h.id ASC"
	if q.Newest {
		order = "h.published_at DESC, h.id ASC"
	}
	inner = inner.OrderBy(order)
	if q.Limit > 0 {
		inner = inner.Limit(uint64(q.Limit))
	}

	hs, _, err := s.selectWithScores(ctx, inner, order)
	return hs, err
}

// Pending returns up to limit headlines lacking a score from at least one
// of models, most recently ingested first so that stubborn failures cannot
// starve new headlines.
func (s *Store) Pending(ctx context.Context, models []string, limit int) ([]types.Headline, error) {
	if len(models) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(models)+1)
	for _, m := range models {
		args = append(args, m)
	}
	args = append(args, len(models))

	order := "h.ingested_at DESC, h.id ASC"
	inner := sq.Select(headlineColumns...).From("headlines h").
		Where(sq.Expr("(SELECT COUNT(*) FROM scores p WHERE p.headline_id = h.id AND p.model IN ("+sq.Placeholders(len(models))+")) < ?", args...)).
		OrderBy(order)
	if limit > 0 {
		inner = inner.Limit(uint64(limit))
	}

	hs, _, err := s.selectWithScores(ctx, inner, order)
	return hs, err
}

// ChangedSince returns up to limit headlines whose change sequence is
// greater than seq, in sequence order, and the highest sequence returned.
// A headline changes when it is inserted and whenever a score is written.
func (s *Store) ChangedSince(ctx context.Context, seq int64, limit int) ([]types.Headline, int64, error) {
	order := "h.seq ASC"
	inner := sq.Select(headlineColumns...).From("headlines h").
		Where(sq.Gt{"h.seq": seq}).
		OrderBy(order)
	if limit > 0 {
		inner = inner.Limit(uint64(limit))
	}

	hs, maxSeq, err := s.selectWithScores(ctx, inner, order)
	if err != nil {
		return nil, seq, err
	}
	if maxSeq < seq {
		maxSeq = seq
	}
	return hs, maxSeq, nil
}

// MaxSeq returns the current highest change sequence.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM headlines").Scan(&seq); err != nil {
		return 0, s.classify(err, "max seq")
	}
	return seq.Int64, nil
}

// selectWithScores runs inner as a subquery and left-joins every score of
// each selected headline. order must restate inner's ordering with the "h."
// prefix so grouping sees each headline's rows contiguously.
func (s *Store) selectWithScores(ctx context.Context, inner sq.SelectBuilder, order string) ([]types.Headline, int64, error) {
	outer := s.sb.Select(append(append([]string{}, headlineColumns...), scoreColumns...)...).
		FromSelect(inner, "h").
		LeftJoin("scores s ON s.headline_id = h.id").
		OrderBy(order, "s.model ASC")

	query, args, err := outer.ToSql()
	if err != nil {
		return nil, 0, eris.Wrap(err, "building select")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, s.classify(err, "select headlines")
	}
	defer rows.Close()

	var (
		out    []types.Headline
		maxSeq int64
	)
	for rows.Next() {
		var (
			h                    types.Headline
			provenance           string
			published, ingested  int64
			seq                  int64
			model, label         sql.NullString
			polarity, confidence sql.NullFloat64
			scoredAt             sql.NullInt64
		)
		if err := rows.Scan(
			&h.ID, &h.Source, &h.Title, &h.URL, &published, &provenance, &ingested, &seq,
			&model, &label, &polarity, &confidence, &scoredAt,
		); err != nil {
			return nil, 0, s.classify(err, "scan headline")
		}
		if seq > maxSeq {
			maxSeq = seq
		}

		if n := len(out); n == 0 || out[n-1].ID != h.ID {
			h.PublishedAt = fromNanos(published)
			h.IngestedAt = fromNanos(ingested)
			h.TimeProvenance = types.TimeProvenance(provenance)
			h.Scores = make(map[string]types.SentimentScore)
			out = append(out, h)
		}

		if model.Valid {
			score := types.SentimentScore{
				Model:    model.String,
				Label:    types.Label(label.String),
				Polarity: polarity.Float64,
				ScoredAt: fromNanos(scoredAt.Int64),
			}
			if confidence.Valid {
				c := confidence.Float64
				score.Confidence = &c
			}
			out[len(out)-1].Scores[model.String] = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.classify(err, "iterate headlines")
	}
	return out, maxSeq, nil
}
