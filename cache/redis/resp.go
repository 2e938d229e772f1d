package redis

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ServerError is an error reply ("-ERR ...") sent by Redis.
type ServerError string

func (e ServerError) Error() string { return "redis: " + string(e) }

// EncodeCommand renders parts as a RESP array of bulk strings.
func EncodeCommand(parts ...string) []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "*%d\r\n", len(parts))
	for _, part := range parts {
		fmt.Fprintf(buf, "$%d\r\n%s\r\n", len(part), part)
	}
	return buf.Bytes()
}

// Decode reads one RESP value. Simple strings decode to string, integers to
// int64, bulk strings to []byte, arrays to []any, and nil replies to nil.
// Error replies are returned as ServerError.
func Decode(r *bufio.Reader) (any, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\r\n")

	switch prefix {
	case '+':
		return line, nil
	case '-':
		return nil, ServerError(line)
	case ':':
		return strconv.ParseInt(line, 10, 64)
	case '$':
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			return nil, nil
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		if err := consumeCRLF(r); err != nil {
			return nil, err
		}
		return data, nil
	case '*':
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			return nil, nil
		}
		arr := make([]any, n)
		for i := range arr {
			val, err := Decode(r)
			if err != nil {
				return nil, err
			}
			arr[i] = val
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("redis: unsupported RESP prefix %q", prefix)
	}
}

func consumeCRLF(r *bufio.Reader) error {
	b1, err := r.ReadByte()
	if err != nil {
		return err
	}
	b2, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b1 != '\r' || b2 != '\n' {
		return errors.New("redis: malformed RESP terminator")
	}
	return nil
}
