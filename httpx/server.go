package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Server owns the echo instance, its middleware stack and the listener.
type Server struct {
	app      *App
	address  string
	read     time.Duration
	write    time.Duration
	shutdown time.Duration
	logger   zerolog.Logger
}

// RouteRegistrar mounts a set of routes on the server's App.
type RouteRegistrar func(*App)

type StartOption func(*Server)

// WithShutdownTimeout bounds how long Start waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) StartOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

// NewServer installs, in order: DefaultMiddlewares, CORS when configured,
// then the appended middlewares.
func NewServer(opts ...ServerOption) *Server {
	cfg := defaultServerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	app := newApp()
	app.e.HTTPErrorHandler = echo.HTTPErrorHandler(NewErrorHandler(cfg.Logger))
	app.Use(DefaultMiddlewares(cfg.Logger)...)
	if cfg.CORS != nil {
		app.Use(CORSMiddleware(cfg.CORS))
	}
	app.Use(cfg.Extra...)

	return &Server{
		app:      app,
		address:  cfg.Address,
		read:     cfg.ReadTimeout,
		write:    cfg.WriteTimeout,
		shutdown: 5 * time.Second,
		logger:   cfg.Logger,
	}
}

func (s *Server) RegisterRoutes(reg RouteRegistrar) {
	if reg != nil {
		reg(s.app)
	}
}

func (s *Server) Handler() http.Handler { return s.app.e }

// Start serves until ctx is cancelled, then shuts down gracefully. It returns
// ctx.Err() after a clean shutdown or the listener error otherwise.
func (s *Server) Start(ctx context.Context, opts ...StartOption) error {
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.app.e,
		ReadTimeout:  s.read,
		WriteTimeout: s.write,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.address).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("http server shutdown")
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
