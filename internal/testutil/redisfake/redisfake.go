// Package redisfake is an in-process Redis stand-in speaking enough RESP for
// the Redis client and rate limiter tests: PING, AUTH, SELECT, SET (PX, NX),
// INCR and PTTL. Connections are net.Pipe pairs, so no sockets or containers
// are involved.
package redisfake

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

type item struct {
	value     string
	expiresAt time.Time
}

// Server holds the fake keyspace. Its clock only moves through Advance.
type Server struct {
	mu       sync.Mutex
	data     map[string]item
	now      time.Time
	password string
	commands []string
}

// New returns an empty server. A non-empty password makes AUTH mandatory.
func New(password string) *Server {
	return &Server{
		data:     make(map[string]item),
		now:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		password: password,
	}
}

// Dial opens a fresh connection to the server.
func (s *Server) Dial(context.Context) (net.Conn, error) {
	client, server := net.Pipe()
	go s.serve(server)
	return client, nil
}

// Advance moves the fake clock forward.
func (s *Server) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

// Seed stores value under key without expiry.
func (s *Server) Seed(key, value string) {
	s.mu.Lock()
	s.data[key] = item{value: value}
	s.mu.Unlock()
}

// Commands lists the command names received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// serve reads commands and hands replies to a writer goroutine, so clients
// may pipeline several commands before reading over the unbuffered pipe.
func (s *Server) serve(conn net.Conn) {
	replies := make(chan string, 64)
	go func() {
		defer conn.Close()
		for reply := range replies {
			if _, err := io.WriteString(conn, reply); err != nil {
				return
			}
		}
	}()
	defer close(replies)

	r := bufio.NewReader(conn)
	authed := s.password == ""
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		replies <- s.exec(args, &authed)
	}
}

func (s *Server) exec(args []string, authed *bool) string {
	if len(args) == 0 {
		return "-ERR empty command\r\n"
	}
	cmd := strings.ToUpper(args[0])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)

	if cmd == "AUTH" {
		if len(args) == 2 && args[1] == s.password {
			*authed = true
			return "+OK\r\n"
		}
		return "-WRONGPASS invalid password\r\n"
	}
	if !*authed {
		return "-NOAUTH Authentication required.\r\n"
	}

	switch cmd {
	case "PING":
		return "+PONG\r\n"
	case "SELECT":
		return "+OK\r\n"
	case "SET":
		return s.set(args[1:])
	case "INCR":
		it, _ := s.lookup(args[1])
		n, err := strconv.ParseInt(defaultString(it.value, "0"), 10, 64)
		if err != nil {
			return "-ERR value is not an integer or out of range\r\n"
		}
		n++
		it.value = strconv.FormatInt(n, 10)
		s.data[args[1]] = it
		return fmt.Sprintf(":%d\r\n", n)
	case "PTTL":
		it, ok := s.lookup(args[1])
		if !ok {
			return ":-2\r\n"
		}
		if it.expiresAt.IsZero() {
			return ":-1\r\n"
		}
		return fmt.Sprintf(":%d\r\n", it.expiresAt.Sub(s.now).Milliseconds())
	default:
		return fmt.Sprintf("-ERR unknown command '%s'\r\n", args[0])
	}
}

func (s *Server) set(args []string) string {
	if len(args) < 2 {
		return "-ERR wrong number of arguments for 'set' command\r\n"
	}
	key, value := args[0], args[1]
	var (
		nx  bool
		ttl time.Duration
	)
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
		case "PX":
			if i+1 >= len(args) {
				return "-ERR syntax error\r\n"
			}
			ms, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil || ms <= 0 {
				return "-ERR invalid expire time in 'set' command\r\n"
			}
			ttl = time.Duration(ms) * time.Millisecond
			i++
		default:
			return "-ERR syntax error\r\n"
		}
	}
	if _, exists := s.lookup(key); exists && nx {
		return "$-1\r\n"
	}
	it := item{value: value}
	if ttl > 0 {
		it.expiresAt = s.now.Add(ttl)
	}
	s.data[key] = it
	return "+OK\r\n"
}

// lookup must be called with s.mu held.
func (s *Server) lookup(key string) (item, bool) {
	it, ok := s.data[key]
	if !ok {
		return item{}, false
	}
	if !it.expiresAt.IsZero() && !s.now.Before(it.expiresAt) {
		delete(s.data, key)
		return item{}, false
	}
	return it, true
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("redisfake: expected array, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := readLine(r)
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimPrefix(header, "$"))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
