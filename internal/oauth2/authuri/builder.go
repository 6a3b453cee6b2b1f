// Package authuri builds the authorization request URI sent to the user agent.
package authuri

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// ErrEmptyState is returned when Build is called without a state value.
var ErrEmptyState = errors.New("authuri: empty state")

// Builder produces the authorization request URI for a configuration and a
// freshly generated state. Implementations must be deterministic.
type Builder interface {
	Build(cfg clientconfig.Configuration, state string) (string, error)
}

// DefaultBuilder appends response_type, client_id, redirect_uri, scope and
// state to the authorization endpoint, in that order. Scope is omitted when
// the configuration has none.
type DefaultBuilder struct{}

func (DefaultBuilder) Build(cfg clientconfig.Configuration, state string) (string, error) {
	if state == "" {
		return "", ErrEmptyState
	}
	if _, err := url.Parse(cfg.AuthorizationURI); err != nil {
		return "", fmt.Errorf("authuri: parse authorization_uri: %w", err)
	}

	var b strings.Builder
	add := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escape(v))
	}
	add(core.ParamResponseType, core.ResponseTypeCode)
	add(core.ParamClientID, cfg.ClientID)
	add(core.ParamRedirectURI, cfg.RedirectURI)
	if scopes := cfg.Scopes(); len(scopes) > 0 {
		add(core.ParamScope, core.JoinScope(scopes))
	}
	add(core.ParamState, state)

	return join(cfg.AuthorizationURI, b.String()), nil
}

// escape percent-encodes v as a URI component. Spaces become %20.
func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// join appends query to endpoint, keeping any query already present and
// dropping a fragment.
func join(endpoint, query string) string {
	if i := strings.IndexByte(endpoint, '#'); i >= 0 {
		endpoint = endpoint[:i]
	}
	switch {
	case !strings.Contains(endpoint, "?"):
		return endpoint + "?" + query
	case strings.HasSuffix(endpoint, "?"), strings.HasSuffix(endpoint, "&"):
		return endpoint + query
	default:
		return endpoint + "&" + query
	}
}
