// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// dialect captures what differs between the SQLite and Postgres backends.
type dialect struct {
	name        string
	driver      string
	placeholder sq.PlaceholderFormat

	// nextSeq is a SQL expression yielding the next change sequence value.
	nextSeq string

	extraSchema []string
	isConflict  func(err error) bool
}

var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS headlines (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		published_at BIGINT NOT NULL,
		time_provenance TEXT NOT NULL,
		ingested_at BIGINT NOT NULL,
		seq BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_headlines_published_at ON headlines(published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_headlines_seq ON headlines(seq)`,
	`CREATE INDEX IF NOT EXISTS idx_headlines_ingested_at ON headlines(ingested_at)`,
	`CREATE TABLE IF NOT EXISTS scores (
		headline_id TEXT NOT NULL REFERENCES headlines(id),
		model TEXT NOT NULL,
		label TEXT NOT NULL,
		polarity DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION,
		scored_at BIGINT NOT NULL,
		PRIMARY KEY (headline_id, model)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_model ON scores(model)`,
	`CREATE TABLE IF NOT EXISTS cycle_state (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS prices (
		day BIGINT PRIMARY KEY,
		usd DOUBLE PRECISION NOT NULL
	)`,
}

func (d dialect) schema() []string {
	return append(append([]string{}, d.extraSchema...), baseSchema...)
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driver:      "sqlite3",
	placeholder: sq.Question,
	// Writers are serialized by BEGIN IMMEDIATE, so MAX+1 is race free.
	nextSeq:    "(SELECT COALESCE(MAX(seq), 0) + 1 FROM headlines)",
	isConflict: isSQLiteConflict,
}

var postgresDialect = dialect{
	name:        "postgres",
	driver:      "pgx",
	placeholder: sq.Dollar,
	nextSeq:     "nextval('headline_seq')",
	extraSchema: []string{`CREATE SEQUENCE IF NOT EXISTS headline_seq`},
	isConflict:  isPostgresConflict,
}

func isSQLiteConflict(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// Postgres SQLSTATEs for serialization failure, deadlock, and lock timeout.
var pgConflictCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

func isPostgresConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgConflictCodes[pgErr.Code]
	}
	return false
}
