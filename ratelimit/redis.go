package ratelimit

import (
	"context"
	"time"
)

// WindowCounter is the part of the Redis client the limiter needs.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisStore keeps counters in Redis so every instance shares one budget.
type RedisStore struct {
	counter WindowCounter
	prefix  string
}

// NewRedisStore wraps counter. Keys are stored under prefix.
func NewRedisStore(counter WindowCounter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{counter: counter, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return s.counter.IncrWindow(ctx, s.prefix+key, window)
}
