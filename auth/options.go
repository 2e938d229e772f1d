package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type (
	// MiddlewareSkipper lets a request through without a token.
	MiddlewareSkipper func(*http.Request) bool
	// MiddlewareErrorHandler answers a request whose token was missing or
	// refused.
	MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)
	MiddlewareOption       func(*middlewareConfig)
)

type middlewareConfig struct {
	verifier     Verifier
	extractor    TokenExtractor
	skipper      MiddlewareSkipper
	errorHandler MiddlewareErrorHandler
}

func newMiddlewareConfig(verifier Verifier, opts ...MiddlewareOption) (middlewareConfig, error) {
	if verifier == nil {
		return middlewareConfig{}, errors.New("auth: middleware requires a verifier")
	}
	cfg := middlewareConfig{verifier: verifier}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.extractor == nil {
		cfg.extractor = BearerTokenExtractor()
	}
	if cfg.skipper == nil {
		cfg.skipper = defaultSkipper
	}
	if cfg.errorHandler == nil {
		cfg.errorHandler = defaultErrorHandler
	}
	return cfg, nil
}

// WithTokenExtractor replaces the default bearer header lookup.
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if extractor != nil {
			cfg.extractor = extractor
		}
	}
}

func WithSkipper(skipper MiddlewareSkipper) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if skipper != nil {
			cfg.skipper = skipper
		}
	}
}

func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

func defaultSkipper(*http.Request) bool { return false }

// defaultErrorHandler answers 401, or 503 when no secret is configured, or
// 504 when the request gave up while verifying.
func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, message := http.StatusUnauthorized, "Unauthorized"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Request timed out"
	case errors.Is(err, ErrNotConfigured):
		status, message = http.StatusServiceUnavailable, "Authentication is not configured"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
