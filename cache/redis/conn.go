package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

type dialFunc func(context.Context, Options) (net.Conn, error)

type clientConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *Client) withConn(ctx context.Context, fn func(*clientConn) error) error {
	conn, err := c.acquireConn(ctx)
	if err != nil {
		return err
	}
	broken := false
	defer func() {
		c.releaseConn(conn, broken)
	}()
	if err := fn(conn); err != nil {
		var serverErr ServerError
		if !errors.As(err, &serverErr) {
			broken = true
		}
		return err
	}
	return nil
}

func (c *Client) acquireConn(ctx context.Context) (*clientConn, error) {
	select {
	case conn := <-c.pool:
		return conn, nil
	default:
		return c.newConn(ctx)
	}
}

func (c *Client) releaseConn(conn *clientConn, broken bool) {
	if conn == nil {
		return
	}
	if broken {
		_ = conn.Close()
		return
	}
	select {
	case c.pool <- conn:
	default:
		_ = conn.Close()
	}
}

func (c *Client) newConn(ctx context.Context) (*clientConn, error) {
	nc, err := c.dialFn(ctx, c.opts)
	if err != nil {
		return nil, fmt.Errorf("redis: dial %s: %w", c.opts.Addr, err)
	}
	conn := &clientConn{Conn: nc, reader: bufio.NewReader(nc)}
	if err := c.handshake(conn); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) handshake(conn *clientConn) error {
	if c.opts.Password != "" {
		if err := c.expectOK(conn, "AUTH", c.opts.Password); err != nil {
			return err
		}
	}
	if c.opts.DB > 0 {
		if err := c.expectOK(conn, "SELECT", strconv.Itoa(c.opts.DB)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) expectOK(conn *clientConn, parts ...string) error {
	resp, err := c.roundTrip(conn, parts...)
	if err != nil {
		return err
	}
	if msg, ok := resp.(string); ok && strings.EqualFold(msg, "OK") {
		return nil
	}
	return fmt.Errorf("redis: %s: expected OK, got %v", parts[0], resp)
}

func (c *Client) roundTrip(conn *clientConn, parts ...string) (any, error) {
	if err := c.send(conn, parts...); err != nil {
		return nil, err
	}
	return c.read(conn)
}

func (c *Client) send(conn *clientConn, parts ...string) error {
	if err := applyDeadline(conn.SetWriteDeadline, c.opts.WriteTimeout); err != nil {
		return err
	}
	_, err := conn.Write(EncodeCommand(parts...))
	return err
}

func (c *Client) read(conn *clientConn) (any, error) {
	if err := applyDeadline(conn.SetReadDeadline, c.opts.ReadTimeout); err != nil {
		return nil, err
	}
	resp, err := Decode(conn.reader)
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("redis: connection closed: %w", err)
	}
	return resp, err
}

func defaultDial(ctx context.Context, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return dialer.DialContext(ctx, "tcp", opts.Addr)
}

func applyDeadline(setter func(time.Time) error, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	return setter(time.Now().Add(timeout))
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
