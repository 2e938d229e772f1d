package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pipeaalzamora/el-blog-del-ceo/comments"
)

// Comments persists comments.Comment rows.
type Comments struct {
	db      *sql.DB
	dialect Dialect
}

var _ comments.Repository = (*Comments)(nil)

func NewComments(db *sql.DB, dialect Dialect) *Comments {
	return &Comments{db: db, dialect: dialect}
}

func (r *Comments) Add(ctx context.Context, c comments.Comment) error {
	query := r.dialect.bind(`INSERT INTO comments (id, post_id, nickname, content, created_at, approved) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, c.ID, c.PostID, c.Nickname, c.Content, c.CreatedAt.UTC(), c.Approved)
	if err != nil {
		if r.dialect.isUnique(err) {
			return comments.ErrConflict
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *Comments) ListApproved(ctx context.Context, postID string) ([]comments.Comment, error) {
	query := r.dialect.bind(`SELECT id, post_id, nickname, content, created_at, approved FROM comments
WHERE post_id = ? AND approved = ? ORDER BY created_at DESC, id DESC`)
	rows, err := r.db.QueryContext(ctx, query, postID, true)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := []comments.Comment{}
	for rows.Next() {
		var c comments.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Nickname, &c.Content, &c.CreatedAt, &c.Approved); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

func (r *Comments) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}
