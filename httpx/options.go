package httpx

import (
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// HTTPErrorHandler renders an error returned by a handler or middleware.
type HTTPErrorHandler func(error, Context)

type ServerOptions struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Extra runs after DefaultMiddlewares and CORS.
	Extra  []MiddlewareFunc
	CORS   *middleware.CORSConfig
	Logger zerolog.Logger
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Logger:       zerolog.Nop(),
	}
}

// WithLogger sets the logger of the request logger and the error handler.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(o *ServerOptions) { o.Logger = logger }
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

// AppendMiddlewares runs mw, in order, after the default stack.
func AppendMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) { o.Extra = append(o.Extra, mw...) }
}

// WithCORS enables CORS; a nil cfg uses DefaultCORSConfig.
func WithCORS(cfg *middleware.CORSConfig) ServerOption {
	return func(o *ServerOptions) {
		if cfg == nil {
			def := DefaultCORSConfig
			cfg = &def
		}
		o.CORS = cfg
	}
}

type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Headers map[string]string
}

type ClientOption func(*ClientOptions)

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithRetries retries network errors and 429/5xx answers up to n times with
// resty's backoff.
func WithRetries(n int) ClientOption {
	return func(o *ClientOptions) {
		if n >= 0 {
			o.Retries = n
		}
	}
}

// WithHeaders adds headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}
