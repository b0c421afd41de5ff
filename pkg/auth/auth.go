// Package auth gates the admin HTTP surface with a single shared-secret
// bearer token, derived with PBKDF2-SHA256 and compared in constant time.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrInvalidToken is returned when the bearer token does not match.
var ErrInvalidToken = errors.New("invalid or missing bearer token")

const (
	saltLength     = 16
	iterationCount = 4096
	keyLength      = 32
)

// TokenAuthenticator verifies a single admin bearer token against a
// PBKDF2-derived key, so the plaintext secret is never held in memory
// longer than it takes to derive the key.
type TokenAuthenticator struct {
	salt       []byte
	derivedKey []byte
}

// NewTokenAuthenticator derives a comparison key from secret with a
// freshly generated random salt.
func NewTokenAuthenticator(secret string) (*TokenAuthenticator, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("auth: generate salt: %w", err)
	}
	return &TokenAuthenticator{
		salt:       salt,
		derivedKey: derive(secret, salt),
	}, nil
}

func derive(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterationCount, keyLength, sha256.New)
}

// Verify reports whether token matches the configured secret, using a
// constant-time comparison of the derived keys.
func (t *TokenAuthenticator) Verify(token string) bool {
	if token == "" {
		return false
	}
	candidate := derive(token, t.salt)
	return hmac.Equal(candidate, t.derivedKey)
}

// ParseAuthHeader extracts the bearer token from an Authorization header.
func ParseAuthHeader(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
