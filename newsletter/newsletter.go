// Package newsletter manages subscribers and fans new posts out to them by
// email.
package newsletter

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
)

var ErrSubscriberNotFound = errors.New("newsletter: subscriber not found")

type Subscriber struct {
	ID             string             `json:"id"`
	Email          string             `json:"email"`
	Categories     []content.Category `json:"categories"`
	Active         bool               `json:"isActive"`
	SubscribedAt   time.Time          `json:"subscribedAt"`
	UnsubscribedAt *time.Time         `json:"unsubscribedAt,omitempty"`
	LastEmailSent  *time.Time         `json:"lastEmailSent,omitempty"`
}

// Wants reports whether the subscriber receives posts of category.
func (s Subscriber) Wants(category content.Category) bool {
	return slices.Contains(s.Categories, content.All) || slices.Contains(s.Categories, category)
}

// Input is the payload of POST /api/newsletter.
type Input struct {
	Email      string   `json:"email"`
	Categories []string `json:"categories"`
}

type Stats struct {
	Total  int `json:"totalSubscribers"`
	Active int `json:"activeSubscribers"`
}

// Repository persists subscribers. Emails are unique.
type Repository interface {
	// Upsert inserts s, or reactivates the existing subscriber with the same
	// email and replaces its categories. The stored row is returned.
	Upsert(ctx context.Context, s Subscriber) (Subscriber, error)
	// Deactivate reports false when no subscriber has email.
	Deactivate(ctx context.Context, email string, at time.Time) (bool, error)
	// ListActive returns active subscribers that want category, or every
	// active subscriber when category is All.
	ListActive(ctx context.Context, category content.Category) ([]Subscriber, error)
	MarkSent(ctx context.Context, ids []string, at time.Time) error
	Stats(ctx context.Context) (Stats, error)
}

var emailJunk = regexp.MustCompile(`[^\w@.+-]`)

// SanitizeEmail lowercases and trims email and drops every character that
// cannot appear in an address we accept.
func SanitizeEmail(email string) string {
	return emailJunk.ReplaceAllString(strings.ToLower(strings.TrimSpace(email)), "")
}
