// Package session holds the result of a completed authorization code grant.
package session

import (
	"context"
	"sort"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// Principal is the identity behind the access token.
type Principal interface {
	Name() string
}

// AuthenticatedSession carries the tokens obtained for a configuration. It
// counts as authenticated only once a principal is attached. Values are
// immutable; WithPrincipal returns a copy.
type AuthenticatedSession struct {
	principal    Principal
	authorities  []string
	config       clientconfig.Configuration
	accessToken  core.AccessToken
	refreshToken *core.RefreshToken
}

// New builds an unauthenticated session.
func New(cfg clientconfig.Configuration, at core.AccessToken, rt *core.RefreshToken) *AuthenticatedSession {
	return &AuthenticatedSession{
		config:       cfg,
		accessToken:  at,
		refreshToken: rt,
		authorities:  []string{},
	}
}

// WithPrincipal returns a copy with the principal and authorities set.
// Authorities are de-duplicated and sorted.
func (s *AuthenticatedSession) WithPrincipal(p Principal, authorities []string) *AuthenticatedSession {
	cp := *s
	cp.principal = p
	cp.authorities = normalize(authorities)
	return &cp
}

// Authenticated reports whether a principal has been attached.
func (s *AuthenticatedSession) Authenticated() bool { return s.principal != nil }

func (s *AuthenticatedSession) Principal() Principal { return s.principal }

func (s *AuthenticatedSession) Authorities() []string {
	return append([]string{}, s.authorities...)
}

func (s *AuthenticatedSession) Configuration() clientconfig.Configuration { return s.config }

// AccessToken returns a copy; Scopes does not alias the session.
func (s *AuthenticatedSession) AccessToken() core.AccessToken {
	at := s.accessToken
	at.Scopes = append([]string{}, s.accessToken.Scopes...)
	return at
}

// RefreshToken is nil when the server did not issue one.
func (s *AuthenticatedSession) RefreshToken() *core.RefreshToken {
	if s.refreshToken == nil {
		return nil
	}
	rt := *s.refreshToken
	return &rt
}

func normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

type ctxKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s *AuthenticatedSession) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (*AuthenticatedSession, bool) {
	s, ok := ctx.Value(ctxKey{}).(*AuthenticatedSession)
	return s, ok && s != nil
}
