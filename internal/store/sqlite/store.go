// Package sqlite persists users, refresh tokens and identities in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store owns the database handle shared by the repositories.
type Store struct {
	db *sql.DB
}

// Open connects to dsn ("file:auth.db", a path, or ":memory:") and creates
// the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("dsn", dsn).Msg("opened sqlite store")
	return &Store{db: db}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func initSchema(ctx context.Context, db *sql.DB) error {
	tables := []struct {
		name string
		ddl  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				email          TEXT    NOT NULL UNIQUE,
				password_hash  TEXT    NOT NULL,
				full_name      TEXT,
				is_admin       INTEGER NOT NULL DEFAULT 0,
				is_active      INTEGER NOT NULL DEFAULT 1,
				created_at     INTEGER NOT NULL,
				updated_at     INTEGER NOT NULL
			);`},
		{"refresh_tokens", `
			CREATE TABLE IF NOT EXISTS refresh_tokens (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
				token_hash  TEXT    NOT NULL UNIQUE,
				expires_at  INTEGER NOT NULL,
				created_at  INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS refresh_tokens_user_id ON refresh_tokens (user_id);`},
		{"identities", `
			CREATE TABLE IF NOT EXISTS identities (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				auth_subject_id  INTEGER NOT NULL,
				email            TEXT    NOT NULL UNIQUE,
				full_name        TEXT,
				password_hash    TEXT    NOT NULL DEFAULT '',
				is_admin         INTEGER NOT NULL DEFAULT 0,
				is_active        INTEGER NOT NULL DEFAULT 1,
				created_at       INTEGER NOT NULL,
				updated_at       INTEGER NOT NULL
			);`},
	}
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table.ddl); err != nil {
			return fmt.Errorf("failed to init '%s' table schema: %w", table.name, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Timestamps are stored as Unix milliseconds.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
