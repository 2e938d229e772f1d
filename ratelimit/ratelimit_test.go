package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRuleResolution(t *testing.T) {
	l := New(NewMemoryStore(nil))

	cases := map[string]int{
		"/api/comments":        5,
		"/api/comments/abc":    5,
		"/api/newsletter":      3,
		"/api/newsletter/send": 3,
		"/api/search":          20,
		"/api/posts":           100,
		"/api/webhook":         100,
	}
	for path, want := range cases {
		if got := l.Rule(path).Requests; got != want {
			t.Fatalf("Rule(%q).Requests = %d, want %d", path, got, want)
		}
	}
}

func TestAllowFixedWindow(t *testing.T) {
	clock := newClock()
	l := New(NewMemoryStore(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := l.Allow(ctx, "10.0.0.1", "/api/comments")
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Fatalf("request %d remaining = %d, want %d", i+1, d.Remaining, 4-i)
		}
	}

	d := l.Allow(ctx, "10.0.0.1", "/api/comments")
	if d.Allowed {
		t.Fatalf("sixth request should be limited")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("RetryAfter = %v, want 1m", d.RetryAfter)
	}

	clock.Advance(30 * time.Second)
	if d := l.Allow(ctx, "10.0.0.1", "/api/comments"); d.Allowed || d.RetryAfter != 30*time.Second {
		t.Fatalf("window should not slide: %+v", d)
	}

	clock.Advance(30 * time.Second)
	if d := l.Allow(ctx, "10.0.0.1", "/api/comments"); !d.Allowed {
		t.Fatalf("new window should allow requests")
	}
}

func TestAllowSeparatesClientsAndPaths(t *testing.T) {
	l := New(NewMemoryStore(newClock().Now), WithRules(Rule{Prefix: "/api/newsletter", Requests: 1, Window: time.Minute}))
	ctx := context.Background()

	if !l.Allow(ctx, "a", "/api/newsletter").Allowed {
		t.Fatalf("first request from a should pass")
	}
	if l.Allow(ctx, "a", "/api/newsletter").Allowed {
		t.Fatalf("second request from a should be limited")
	}
	if !l.Allow(ctx, "b", "/api/newsletter").Allowed {
		t.Fatalf("client b has its own window")
	}
	if !l.Allow(ctx, "a", "/api/newsletter/send").Allowed {
		t.Fatalf("each path has its own window")
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("boom")
}

func TestAllowFailsOpen(t *testing.T) {
	l := New(failingStore{})
	if d := l.Allow(context.Background(), "a", "/api/search"); !d.Allowed {
		t.Fatalf("store failure should not block requests")
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	if _, _, err := store.Hit(ctx, "short", time.Second); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}
	if _, _, err := store.Hit(ctx, "long", time.Hour); err != nil {
		t.Fatalf("Hit() error = %v", err)
	}

	clock.Advance(2 * time.Second)
	if removed := store.Cleanup(); removed != 1 {
		t.Fatalf("Cleanup() = %d, want 1", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryStoreRunStopsWithContext(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
