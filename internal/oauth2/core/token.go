package core

import (
	"strings"
	"time"
)

// AccessTokenType is the closed set of token types the client recognizes.
type AccessTokenType string

const (
	AccessTokenTypeBearer       AccessTokenType = "bearer"
	AccessTokenTypeMAC          AccessTokenType = "mac"
	AccessTokenTypeUnrecognized AccessTokenType = "unrecognized"
)

// ParseAccessTokenType maps a token_type value case-insensitively. Unknown or
// empty values yield AccessTokenTypeUnrecognized; they never fail the exchange.
func ParseAccessTokenType(v string) AccessTokenType {
	switch {
	case strings.EqualFold(strings.TrimSpace(v), string(AccessTokenTypeBearer)):
		return AccessTokenTypeBearer
	case strings.EqualFold(strings.TrimSpace(v), string(AccessTokenTypeMAC)):
		return AccessTokenTypeMAC
	default:
		return AccessTokenTypeUnrecognized
	}
}

// ParseScope splits a space-delimited scope value. An empty value yields an
// empty, non-nil slice.
func ParseScope(v string) []string {
	fields := strings.Fields(v)
	if fields == nil {
		return []string{}
	}
	return fields
}

// JoinScope is the inverse of ParseScope.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// TokenResponseAttributes is the normalized result of a successful token
// exchange.
type TokenResponseAttributes struct {
	AccessToken     string
	AccessTokenType AccessTokenType
	// ExpiresIn in seconds. Zero means the server declared no expiry.
	ExpiresIn    int64
	Scopes       []string
	RefreshToken string
}

// AccessToken is a credential for the protected resource, stamped with the
// time it was received.
type AccessToken struct {
	Value     string
	Type      AccessTokenType
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when no expiry was declared
}

// Expired reports whether the token has a declared expiry that is in the past.
func (t AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// RefreshToken is stored alongside the access token but never used by this
// client.
type RefreshToken struct {
	Value    string
	IssuedAt time.Time
}

// Tokens converts the response into the session token values. The refresh
// token is nil when the server did not issue one.
func (a *TokenResponseAttributes) Tokens(now time.Time) (AccessToken, *RefreshToken) {
	at := AccessToken{
		Value:    a.AccessToken,
		Type:     a.AccessTokenType,
		Scopes:   append([]string{}, a.Scopes...),
		IssuedAt: now,
	}
	if a.ExpiresIn > 0 {
		at.ExpiresAt = now.Add(time.Duration(a.ExpiresIn) * time.Second)
	}
	var rt *RefreshToken
	if a.RefreshToken != "" {
		rt = &RefreshToken{Value: a.RefreshToken, IssuedAt: now}
	}
	return at, rt
}
