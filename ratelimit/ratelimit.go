// Package ratelimit implements fixed-window request limiting keyed by client
// and path. Counters live in a Store: MemoryStore for a single process or
// RedisStore when several instances sit behind one load balancer.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Rule limits requests whose path starts with Prefix to Requests per Window.
type Rule struct {
	Prefix   string        `yaml:"prefix" json:"prefix"`
	Requests int           `yaml:"requests" json:"requests"`
	Window   time.Duration `yaml:"window" json:"window"`
}

// DefaultRules are matched in order; the first prefix that matches wins.
var DefaultRules = []Rule{
	{Prefix: "/api/comments", Requests: 5, Window: time.Minute},
	{Prefix: "/api/newsletter", Requests: 3, Window: time.Minute},
	{Prefix: "/api/search", Requests: 20, Window: time.Minute},
}

// DefaultFallback applies to paths no rule matches.
var DefaultFallback = Rule{Requests: 100, Window: time.Minute}

// Store counts hits in fixed windows. Hit records one hit under key, starting
// a window of the given length if none is open, and returns the hits so far
// together with the time left in the window.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter resolves the rule for a path and consults the store.
type Limiter struct {
	store    Store
	rules    []Rule
	fallback Rule
	logger   zerolog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRules replaces DefaultRules.
func WithRules(rules ...Rule) Option {
	return func(l *Limiter) {
		l.rules = append([]Rule(nil), rules...)
	}
}

// WithFallback replaces DefaultFallback.
func WithFallback(rule Rule) Option {
	return func(l *Limiter) {
		l.fallback = rule
	}
}

// WithLogger sets the logger used to report store failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New builds a limiter over store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		rules:    DefaultRules,
		fallback: DefaultFallback,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Rule returns the rule that governs path.
func (l *Limiter) Rule(path string) Rule {
	for _, rule := range l.rules {
		if strings.HasPrefix(path, rule.Prefix) {
			return rule
		}
	}
	return l.fallback
}

// Allow counts one request from client to path. A failing store lets the
// request through and logs the error.
func (l *Limiter) Allow(ctx context.Context, client, path string) Decision {
	rule := l.Rule(path)
	if rule.Requests <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}
	}

	count, left, err := l.store.Hit(ctx, Key(client, path), rule.Window)
	if err != nil {
		l.logger.Warn().Err(err).Str("client", client).Str("path", path).Msg("rate limit store failed")
		return Decision{Allowed: true, Limit: rule.Requests, Remaining: rule.Requests}
	}

	d := Decision{Limit: rule.Requests}
	if count <= int64(rule.Requests) {
		d.Allowed = true
		d.Remaining = rule.Requests - int(count)
		return d
	}
	d.RetryAfter = left
	if d.RetryAfter <= 0 {
		d.RetryAfter = rule.Window
	}
	return d
}

// Key is the counter key for client on path.
func Key(client, path string) string {
	return fmt.Sprintf("%s:%s", client, path)
}
