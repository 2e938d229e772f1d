package memory

import (
	"context"
	"strconv"
	"time"
)

// Fetch is the shape of a memoizable content call.
type Fetch[A, V any] func(ctx context.Context, arg A) (V, error)

// Wrap returns a Fetch with the same signature as fetch that serves live
// entries from c and otherwise runs fetch once per key no matter how many
// callers are waiting on it. Only successful results are stored; errors
// reach every waiting caller unchanged.
//
// The shared fetch runs on a context detached from the first caller's
// cancellation, so a caller that gives up still leaves the result behind
// for the next reader.
//
// A flight started before an Invalidate, InvalidatePattern or Clear on c
// keeps serving the callers already waiting on it but does not store its
// result. Callers arriving after the invalidation start a fresh fetch.
func Wrap[A, V any](c *Cache[V], fetch Fetch[A, V], key func(A) string, ttl time.Duration) Fetch[A, V] {
	return func(ctx context.Context, arg A) (V, error) {
		k := key(arg)
		if v, ok := c.Get(k); ok {
			return v, nil
		}

		// Callers only share a flight started under the same generation, so
		// a read issued after an invalidation never joins an older fetch.
		gen := c.generation()
		res, err, _ := c.group.Do(k+"\x00"+strconv.FormatUint(gen, 10), func() (any, error) {
			// A caller that missed just before the previous flight finished
			// lands here after the result was stored.
			if v, ok := c.peek(k); ok {
				return v, nil
			}
			v, err := fetch(context.WithoutCancel(ctx), arg)
			if err != nil {
				c.opts.Metrics.FetchError(c.opts.Name)
				return nil, err
			}
			if !c.setIfCurrent(k, v, ttl, gen) {
				c.opts.Logger.Debug().Str("cache", c.opts.Name).Str("key", k).
					Msg("invalidated during fetch; result not stored")
			}
			return v, nil
		})
		if err != nil {
			var zero V
			return zero, err
		}

		v, _ := res.(V)
		return c.copyOf(v), nil
	}
}

// Memoize is Wrap for calls that take no argument and live under one key.
func Memoize[V any](c *Cache[V], fetch func(ctx context.Context) (V, error), key string, ttl time.Duration) func(ctx context.Context) (V, error) {
	wrapped := Wrap(c, func(ctx context.Context, _ struct{}) (V, error) {
		return fetch(ctx)
	}, func(struct{}) string { return key }, ttl)

	return func(ctx context.Context) (V, error) {
		return wrapped(ctx, struct{}{})
	}
}
