// Package sqlite implements persistent storage for cards, resources,
// bindings, usage logs and admin accounts on top of modernc.org/sqlite.
//
// All usage-counter mutation funnels through AtomicConsume, a single
// conditional UPDATE — never read-check-write application code.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle. One pooled handle per process; the original
// open-a-fresh-connection-per-request pattern is gone on purpose.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database under dir and applies migrations.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "kami.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection turns
	// SQLITE_BUSY churn into plain queueing.
	sqldb.SetMaxOpenConns(1)

	db := &DB{db: sqldb}
	if err := db.migrate(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Cards. current_uses only ever moves up, through AtomicConsume.
		`CREATE TABLE IF NOT EXISTS cards (
			id           TEXT PRIMARY KEY,
			code         TEXT NOT NULL UNIQUE,
			status       TEXT NOT NULL DEFAULT 'active',
			max_uses     INTEGER NOT NULL,
			current_uses INTEGER NOT NULL DEFAULT 0,
			expires_at   INTEGER,
			note         TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_status ON cards(status)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_created ON cards(created_at)`,

		// Unlockable resources
		`CREATE TABLE IF NOT EXISTS resources (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			target_url TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'active',
			created_at INTEGER NOT NULL
		)`,

		// Card ↔ resource bindings, immutable after card creation
		`CREATE TABLE IF NOT EXISTS card_resources (
			id          TEXT PRIMARY KEY,
			card_id     TEXT NOT NULL REFERENCES cards(id),
			resource_id TEXT NOT NULL REFERENCES resources(id),
			created_at  INTEGER NOT NULL,
			UNIQUE(card_id, resource_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_card ON card_resources(card_id)`,

		// Usage logs. Append-only: no FK so card deletion never touches
		// history, and nothing in this package updates or deletes rows.
		`CREATE TABLE IF NOT EXISTS usage_logs (
			id          TEXT PRIMARY KEY,
			card_id     TEXT,
			resource_id TEXT,
			success     INTEGER NOT NULL,
			ip_address  TEXT NOT NULL DEFAULT '',
			used_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_card ON usage_logs(card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_used_at ON usage_logs(used_at)`,

		// Admin accounts
		`CREATE TABLE IF NOT EXISTS admins (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
	}
}
