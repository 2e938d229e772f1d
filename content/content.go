// Package content serves blog posts from a remote Source through the
// in-process cache. Every read goes through a memoized call keyed in the
// blog-* namespace so a webhook can drop everything with one pattern.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	All      Category = "all"
	Personal Category = "personal"
	Startup  Category = "startup"
)

var (
	ErrPostNotFound    = errors.New("content: post not found")
	ErrInvalidCategory = errors.New("content: invalid category")
)

// ParseCategory accepts personal, startup or all in any case. An empty
// string means All.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return All, nil
	case All, Personal, Startup:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

func (c Category) String() string { return string(c) }

type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Author      string    `json:"author"`
	Category    Category  `json:"category"`
	Tags        []string  `json:"tags"`
	Featured    bool      `json:"featured"`
	CoverImage  string    `json:"coverImage,omitempty"`
	ReadingTime int       `json:"readingTime"`
}

// Source fetches published posts, newest first. All means no category
// filter.
type Source interface {
	Posts(ctx context.Context, category Category) ([]Post, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, category Category) ([]Post, error)

func (f SourceFunc) Posts(ctx context.Context, category Category) ([]Post, error) {
	return f(ctx, category)
}

// ReadingTime is the minutes needed to read text at 250 words per minute,
// never less than one.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + 249) / 250
	if minutes < 1 {
		return 1
	}
	return minutes
}

func clonePost(p Post) Post {
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

func clonePosts(in []Post) []Post {
	if in == nil {
		return nil
	}
	out := make([]Post, len(in))
	for i, p := range in {
		out[i] = clonePost(p)
	}
	return out
}
