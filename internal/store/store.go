// Package store persists users, their billing entitlements, and the
// product-side tables (settings, goals, savings entries, coach messages)
// in a single SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides CRUD operations over the application database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the application database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "sobersavings.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		open_id                TEXT NOT NULL UNIQUE,
		name                   TEXT NOT NULL DEFAULT '',
		email                  TEXT NOT NULL DEFAULT '',
		plan                   TEXT NOT NULL DEFAULT 'free',
		stripe_customer_id     TEXT NOT NULL DEFAULT '',
		stripe_subscription_id TEXT NOT NULL DEFAULT '',
		subscription_status    TEXT NOT NULL DEFAULT '',
		subscription_end_date  INTEGER,
		subscription_event_ts  INTEGER NOT NULL DEFAULT 0,
		created_at             INTEGER NOT NULL,
		updated_at             INTEGER NOT NULL,
		last_signed_in         INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_stripe_customer_id ON users(stripe_customer_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      INTEGER NOT NULL UNIQUE REFERENCES users(id),
		daily_target INTEGER NOT NULL DEFAULT 1000,
		start_date   INTEGER NOT NULL,
		currency     TEXT NOT NULL DEFAULT '¥',
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_goals (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       INTEGER NOT NULL REFERENCES users(id),
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		target_amount INTEGER NOT NULL,
		image         TEXT NOT NULL DEFAULT '',
		is_active     INTEGER NOT NULL DEFAULT 0,
		is_preset     INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_user_goals_user_id ON user_goals(user_id);

	CREATE TABLE IF NOT EXISTS savings_entries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id),
		amount     INTEGER NOT NULL,
		date       INTEGER NOT NULL,
		note       TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_savings_entries_user_id ON savings_entries(user_id, date);

	CREATE TABLE IF NOT EXISTS coach_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id),
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_coach_messages_user_id ON coach_messages(user_id, id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init store schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTimeUnix(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}
