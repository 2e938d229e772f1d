package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
)

// TokenExtractor pulls the raw token out of a request.
type TokenExtractor func(*http.Request) (string, error)

// BearerTokenExtractor reads "Authorization: Bearer <token>". The scheme is
// matched case-insensitively.
func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrTokenInvalidInput
		}
		if token = strings.TrimSpace(token); token == "" {
			return "", ErrTokenInvalidInput
		}
		return token, nil
	}
}

// QueryTokenExtractor reads the token from the named query parameter, as in
// GET /api/webhook?secret=... revalidation links.
func QueryTokenExtractor(name string) TokenExtractor {
	name = strings.TrimSpace(name)
	return func(r *http.Request) (string, error) {
		if name == "" {
			return "", ErrTokenInvalidInput
		}
		query := r.URL.Query()
		if !query.Has(name) {
			return "", ErrTokenNotFound
		}
		if token := strings.TrimSpace(query.Get(name)); token != "" {
			return token, nil
		}
		return "", ErrTokenInvalidInput
	}
}

// HeaderTokenExtractor reads the raw token from a custom header such as
// X-Admin-Token.
func HeaderTokenExtractor(name string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		if token := strings.TrimSpace(r.Header.Get(name)); token != "" {
			return token, nil
		}
		return "", ErrTokenNotFound
	}
}

// ChainExtractors tries each extractor in order and returns the first token
// found, or the last error.
func ChainExtractors(extractors ...TokenExtractor) TokenExtractor {
	chain := make([]TokenExtractor, 0, len(extractors))
	for _, e := range extractors {
		if e != nil {
			chain = append(chain, e)
		}
	}
	return func(r *http.Request) (string, error) {
		err := ErrTokenNotFound
		for _, extract := range chain {
			token, e := extract(r)
			if e == nil {
				return token, nil
			}
			err = e
		}
		return "", err
	}
}
