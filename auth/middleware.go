package auth

import (
	"context"
	"net/http"
)

// Middleware rejects requests whose token the Verifier refuses.
type Middleware struct {
	cfg middlewareConfig
}

type authenticatedKey struct{}

// NewMiddleware fails when verifier is nil.
func NewMiddleware(verifier Verifier, opts ...MiddlewareOption) (*Middleware, error) {
	cfg, err := newMiddlewareConfig(verifier, opts...)
	if err != nil {
		return nil, err
	}
	return &Middleware{cfg: cfg}, nil
}

// Handler guards next. A nil next only answers the status of the check.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		if err := m.check(r); err != nil {
			m.cfg.errorHandler(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authenticatedKey{}, true)))
	})
}

func (m *Middleware) check(r *http.Request) error {
	raw, err := m.cfg.extractor(r)
	if err != nil {
		return err
	}
	return m.cfg.verifier.Verify(r.Context(), raw)
}

// Authenticated reports whether the request carrying ctx passed a Middleware.
func Authenticated(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	ok, _ := ctx.Value(authenticatedKey{}).(bool)
	return ok
}
