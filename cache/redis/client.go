// Package redis is a small RESP client for the fixed-window counters the
// rate limiter keeps in Redis when several blog instances share one budget.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options configures the connection. Zero values take the defaults below.
type Options struct {
	Addr         string // 127.0.0.1:6379
	Password     string
	DB           int
	DialTimeout  time.Duration // 5s
	ReadTimeout  time.Duration // 2s
	WriteTimeout time.Duration // 2s
	PoolSize     int           // 8
	// KeyPrefix namespaces every key, e.g. "blog:".
	KeyPrefix string
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	o.DialTimeout = orDefault(o.DialTimeout, 5*time.Second)
	o.ReadTimeout = orDefault(o.ReadTimeout, 2*time.Second)
	o.WriteTimeout = orDefault(o.WriteTimeout, 2*time.Second)
	if o.DB < 0 {
		o.DB = 0
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 8
	}
	return o
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Client keeps a small pool of authenticated connections.
type Client struct {
	opts   Options
	dialFn dialFunc
	pool   chan *clientConn
}

// New builds a client. Nothing is dialed until the first command.
func New(opts Options) *Client {
	cfg := opts.withDefaults()
	return &Client{opts: cfg, dialFn: defaultDial, pool: make(chan *clientConn, cfg.PoolSize)}
}

// WithDial replaces the dialer; tests point it at an in-process server.
func (c *Client) WithDial(fn dialFunc) {
	if fn != nil {
		c.dialFn = fn
	}
}

// Close drops every pooled connection.
func (c *Client) Close() error {
	for {
		select {
		case conn := <-c.pool:
			_ = conn.Close()
		default:
			return nil
		}
	}
}

func (c *Client) Ping(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return c.withConn(ctx, func(conn *clientConn) error {
		resp, err := c.roundTrip(conn, "PING")
		if err != nil {
			return err
		}
		if msg, ok := resp.(string); ok && strings.EqualFold(msg, "PONG") {
			return nil
		}
		return fmt.Errorf("redis: unexpected PING response %v", resp)
	})
}

func (c *Client) key(k string) string { return c.opts.KeyPrefix + k }

// millis renders d for PX, rounding sub-millisecond windows up to 1.
func millis(d time.Duration) string {
	return strconv.FormatInt(max(d.Milliseconds(), 1), 10)
}
