package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Schema creates the comment and subscriber tables. Statements are
// idempotent so Migrate can run on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL,
	nickname TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	approved BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, approved, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	categories TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	subscribed_at TIMESTAMPTZ NOT NULL,
	unsubscribed_at TIMESTAMPTZ NULL,
	last_email_sent TIMESTAMPTZ NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers(active)`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("postgres: db is nil")
	}
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
