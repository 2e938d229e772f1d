package ratelimit_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/redis"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/testutil/redisfake"
	"github.com/pipeaalzamora/el-blog-del-ceo/ratelimit"
)

func TestRedisStoreSharesBudget(t *testing.T) {
	srv := redisfake.New("")
	dial := func(ctx context.Context, _ redis.Options) (net.Conn, error) {
		return srv.Dial(ctx)
	}

	first := redis.New(redis.Options{})
	first.WithDial(dial)
	second := redis.New(redis.Options{})
	second.WithDial(dial)
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	rules := ratelimit.WithRules(ratelimit.Rule{Prefix: "/api/search", Requests: 2, Window: time.Minute})
	a := ratelimit.New(ratelimit.NewRedisStore(first, ""), rules)
	b := ratelimit.New(ratelimit.NewRedisStore(second, ""), rules)
	ctx := context.Background()

	if !a.Allow(ctx, "1.1.1.1", "/api/search").Allowed {
		t.Fatalf("first request should pass")
	}
	if !b.Allow(ctx, "1.1.1.1", "/api/search").Allowed {
		t.Fatalf("second request should pass")
	}
	d := a.Allow(ctx, "1.1.1.1", "/api/search")
	if d.Allowed {
		t.Fatalf("third request across instances should be limited")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("unexpected RetryAfter %v", d.RetryAfter)
	}

	srv.Advance(time.Minute)
	if !a.Allow(ctx, "1.1.1.1", "/api/search").Allowed {
		t.Fatalf("window should reset")
	}
}
