// Package auth guards the webhook and admin endpoints. Callers present a
// token (bearer header or query parameter) that a Verifier checks against a
// shared secret or a bcrypt hash.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNotConfigured      = errors.New("auth: no secret configured")
	ErrInvalidHash        = errors.New("auth: invalid bcrypt hash")
)

// Verifier decides whether a raw token grants access.
type Verifier interface {
	Verify(ctx context.Context, raw string) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, raw string) error

func (f VerifierFunc) Verify(ctx context.Context, raw string) error { return f(ctx, raw) }

// SecretVerifier accepts exactly one shared secret, compared in constant time.
// An empty secret rejects every token.
type SecretVerifier struct {
	secret []byte
}

func NewSecretVerifier(secret string) *SecretVerifier {
	return &SecretVerifier{secret: []byte(secret)}
}

func (v *SecretVerifier) Verify(ctx context.Context, raw string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	if len(v.secret) == 0 {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare(v.secret, []byte(raw)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// BcryptVerifier accepts the token whose bcrypt hash it holds, so the admin
// token itself never has to be stored in configuration.
type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier validates hash and returns a verifier for it.
func NewBcryptVerifier(hash string) (*BcryptVerifier, error) {
	if hash == "" {
		return nil, ErrNotConfigured
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return &BcryptVerifier{hash: []byte(hash)}, nil
}

func (v *BcryptVerifier) Verify(ctx context.Context, raw string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	if raw == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(raw)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return nil
}

// HashToken returns the bcrypt hash to configure for a BcryptVerifier.
// A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func HashToken(plain string, cost int) (string, error) {
	if plain == "" {
		return "", errors.New("auth: token is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return string(hashed), nil
}

func contextError(ctx context.Context) error {
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
