package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IncrWindow counts one hit in the fixed window stored under key. The window
// is created on the first hit with the given length and never extended by
// later hits. It returns the count so far and the time left in the window.
//
// The three commands are pipelined on one connection: SET NX PX seeds the
// window, INCR counts, PTTL reports the remaining lifetime.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, 0, err
	}

	k := c.key(key)
	var (
		count int64
		left  time.Duration
	)
	err := c.withConn(ctx, func(conn *clientConn) error {
		cmds := [][]string{
			{"SET", k, "0", "PX", millis(window), "NX"},
			{"INCR", k},
			{"PTTL", k},
		}
		for _, cmd := range cmds {
			if err := c.send(conn, cmd...); err != nil {
				return err
			}
		}
		// Every reply is drained before reporting a server error so the
		// connection can go back to the pool in sync.
		replies := make([]any, len(cmds))
		var firstErr error
		for i := range cmds {
			resp, err := c.read(conn)
			if err != nil {
				var serverErr ServerError
				if !errors.As(err, &serverErr) {
					return err
				}
				if firstErr == nil {
					firstErr = err
				}
			}
			replies[i] = resp
		}
		if firstErr != nil {
			return firstErr
		}

		n, ok := replies[1].(int64)
		if !ok {
			return fmt.Errorf("redis: unexpected INCR response %v", replies[1])
		}
		ttl, ok := replies[2].(int64)
		if !ok {
			return fmt.Errorf("redis: unexpected PTTL response %v", replies[2])
		}
		count = n
		if ttl > 0 {
			left = time.Duration(ttl) * time.Millisecond
		}
		return nil
	})
	return count, left, err
}
