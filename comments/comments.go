// Package comments stores reader comments on posts. Input is validated
// against a JSON Schema, sanitized, and screened for markup injection and
// spam before it is stored. Approved comments per post are cached briefly.
package comments

import (
	"context"
	"errors"
	"time"
)

// DefaultNickname is used when a comment is posted without one.
const DefaultNickname = "Anónimo"

var (
	ErrSpam     = errors.New("comments: content not allowed")
	ErrConflict = errors.New("comments: comment already exists")
)

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Approved  bool      `json:"isApproved"`
}

// Input is the payload of POST /api/comments.
type Input struct {
	PostID   string `json:"postId"`
	Nickname string `json:"nickname"`
	Content  string `json:"content"`
}

// Repository persists comments.
type Repository interface {
	Add(ctx context.Context, c Comment) error
	// ListApproved returns the approved comments of a post, newest first.
	ListApproved(ctx context.Context, postID string) ([]Comment, error)
	Count(ctx context.Context) (int, error)
}
