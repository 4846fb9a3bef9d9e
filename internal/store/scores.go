// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// PutScore writes score for the headline, replacing any earlier score from
// the same model. The write and the headline's change-sequence bump commit
// together; a missing headline yields ErrNotFound.
func (s *Store) PutScore(ctx context.Context, headlineID string, score types.SentimentScore) error {
	if score.Model == "" {
		return eris.New("store: score has no model")
	}
	if !score.Label.Valid() {
		return eris.Errorf("store: invalid label %q", score.Label)
	}

	touch, touchArgs, err := s.sb.Update("headlines").
		Set("seq", sq.Expr(s.dialect.nextSeq)).
		Where(sq.Eq{"id": headlineID}).
		ToSql()
	if err != nil {
		return eris.Wrap(err, "building headline touch")
	}

	var confidence sql.NullFloat64
	if score.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *score.Confidence, Valid: true}
	}
	upsert, upsertArgs, err := s.sb.Insert("scores").
		Columns("headline_id", "model", "label", "polarity", "confidence", "scored_at").
		Values(headlineID, score.Model, string(score.Label), score.Polarity, confidence, toNanos(score.ScoredAt)).
		Suffix(`ON CONFLICT (headline_id, model) DO UPDATE SET
			label = excluded.label,
			polarity = excluded.polarity,
			confidence = excluded.confidence,
			scored_at = excluded.scored_at`).
		ToSql()
	if err != nil {
		return eris.Wrap(err, "building score upsert")
	}

	return s.withRetry(ctx, "put score", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, touch, touchArgs...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return eris.Wrapf(ErrNotFound, "id %s", headlineID)
		}

		if _, err := tx.ExecContext(ctx, upsert, upsertArgs...); err != nil {
			return err
		}
		return tx.Commit()
	})
}
