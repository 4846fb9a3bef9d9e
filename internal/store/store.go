// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists headlines, their per-model sentiment scores, the
// pipeline cycle state, and daily prices in SQLite or Postgres.
//
// Headlines are written with insert-if-absent, so the first observation of
// an id wins. Scores live in a child table keyed by (headline_id, model);
// each score write is its own transaction that also bumps the headline's
// change sequence, which feeds incremental trend updates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/headline-sentiment/internal/resilience"
	"github.com/pdiddy/headline-sentiment/pkg/types"
)

var (
	// ErrConflict marks write contention. The store retries it internally
	// and callers never see it.
	ErrConflict = eris.New("store conflict")

	// ErrUnavailable marks a store that cannot be reached or cannot
	// complete writes. It is fatal to a pipeline cycle.
	ErrUnavailable = eris.New("store unavailable")

	// ErrNotFound is returned when a headline id does not exist.
	ErrNotFound = eris.New("headline not found")
)

const (
	defaultConflictRetries = 5
	cycleStateName         = "pipeline"
)

// Store is the headline record store.
type Store struct {
	db      *sql.DB
	dialect dialect
	sb      sq.StatementBuilderType
	retry   resilience.RetryConfig
}

// Open connects to the store described by cfg and applies the schema.
func Open(ctx context.Context, cfg types.StoreConfig) (*Store, error) {
	var (
		d   dialect
		dsn string
	)
	switch cfg.Driver {
	case types.DriverSQLite, "":
		d = sqliteDialect
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrap(err, "creating database directory")
			}
		}
		dsn = cfg.Path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	case types.DriverPostgres:
		d = postgresDialect
		dsn = cfg.DatabaseURL
		if dsn == "" {
			return nil, eris.New("store: postgres requires database_url")
		}
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "opening %s: %v", d.name, err)
	}

	s := newStore(db, d, cfg.ConflictRetries)
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB, d dialect, conflictRetries int) *Store {
	if conflictRetries <= 0 {
		conflictRetries = defaultConflictRetries
	}
	return &Store{
		db:      db,
		dialect: d,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		retry: resilience.RetryConfig{
			MaxAttempts:    conflictRetries + 1,
			InitialBackoff: 20 * time.Millisecond,
			MaxBackoff:     time.Second,
			Multiplier:     2,
			JitterFraction: 0.5,
			ShouldRetry:    func(err error) bool { return eris.Is(err, ErrConflict) },
			OnRetry:        resilience.RetryLogger("store", d.name),
		},
	}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the dialect name ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return eris.Wrapf(ErrUnavailable, "ping %s: %v", s.dialect.name, err)
	}
	return nil
}

// Migrate creates tables and indexes that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return s.classify(err, "migrate")
		}
	}
	return nil
}

// classify maps a driver error onto the store taxonomy. Contention becomes
// ErrConflict; everything else is treated as the store being unable to
// serve the request.
func (s *Store) classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if eris.Is(err, ErrNotFound) || eris.Is(err, ErrConflict) || eris.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrap(err, op)
	}
	if s.dialect.isConflict(err) {
		return eris.Wrapf(ErrConflict, "%s: %v", op, err)
	}
	return eris.Wrapf(ErrUnavailable, "%s: %v", op, err)
}

// withRetry runs a write, retrying contention. Contention that outlasts the
// retries is reported as ErrUnavailable.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.classify(fn(ctx), op)
	})
	if eris.Is(err, ErrConflict) {
		zap.L().Warn("store contention did not clear", zap.String("op", op), zap.Error(err))
		return eris.Wrapf(ErrUnavailable, "%s: contention persisted after %d attempts", op, s.retry.MaxAttempts)
	}
	return err
}

// IsUnavailable reports whether err means the store itself failed.
func IsUnavailable(err error) bool {
	return eris.Is(err, ErrUnavailable)
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
