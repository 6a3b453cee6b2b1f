// Package state generates and persists the anti-forgery value that binds an
// authorization request to its callback.
package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// Size is the number of random bytes in a generated state (256 bits).
const Size = 32

// DefaultTTL bounds how long a pending authorization request is honored.
const DefaultTTL = 10 * time.Minute

// ErrNotFound means no pending request exists for the session key, or the one
// that existed has expired or was already consumed.
var ErrNotFound = errors.New("state: no pending authorization request")

// Record is the server-side memory of an issued authorization request.
type Record struct {
	State           string    `json:"state"`
	ConfigurationID string    `json:"configuration_id"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// NewRecord stamps a record with its creation time and expiry.
func NewRecord(state, configurationID string, now time.Time, ttl time.Duration) Record {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Record{
		State:           state,
		ConfigurationID: configurationID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

// Expired reports whether the record is past its expiry.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store persists at most one pending record per session key.
type Store interface {
	// Save replaces any record already held for key.
	Save(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Take removes and returns the record for key. Among concurrent callers
	// at most one receives it; the rest get ErrNotFound.
	Take(ctx context.Context, key string) (Record, error)
}

// Generate returns Size bytes from crypto/rand, base64url encoded without
// padding.
func Generate() (string, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state: generate: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Prefix shortens a state for logs.
func Prefix(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
