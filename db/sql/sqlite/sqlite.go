// Package sqlite opens the embedded SQLite backend used for development and
// tests. It mirrors the postgres package so callers can swap drivers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrMissingDSN = errors.New("sqlite: DSN is required")

// Schema creates the comment and subscriber tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL,
	nickname TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	approved BOOLEAN NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, approved, created_at)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	categories TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	subscribed_at DATETIME NOT NULL,
	unsubscribed_at DATETIME NULL,
	last_email_sent DATETIME NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers(active)`,
}

// Open opens dsn with modernc's pure Go driver. SQLite serializes writers,
// so the pool holds a single connection; that also keeps an in-memory
// database alive for the lifetime of the *sql.DB.
func Open(dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	memory := inMemory(dsn)
	if !memory {
		if dir := filepath.Dir(strings.TrimPrefix(pathOf(dsn), "file:")); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", withTimeFormat(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return db, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("sqlite: db is nil")
	}
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	var e *sqlite.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(e.Error(), "UNIQUE")
	}
	return false
}

func inMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

func pathOf(dsn string) string {
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		return dsn[:i]
	}
	return dsn
}

// withTimeFormat stores timestamps as "2006-01-02 15:04:05.999999999-07:00"
// so they sort as text.
func withTimeFormat(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}
