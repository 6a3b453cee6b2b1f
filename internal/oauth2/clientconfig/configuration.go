// Package clientconfig holds the registered OAuth2 client configurations.
//
// Configurations are built once at startup and never mutated afterwards, so
// the repository needs no locking.
package clientconfig

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// Configuration is a registered OAuth2 client.
type Configuration struct {
	ID               string
	ClientName       string
	ClientID         string
	ClientSecret     string
	AuthorizationURI string
	TokenURI         string
	RedirectURI      string
	// UserInfoURI is optional; it is only used by the user-info principal
	// resolver.
	UserInfoURI string
	GrantType   core.AuthorizationGrantType

	scopes []string
}

// Params are the inputs for New.
type Params struct {
	ID               string
	ClientName       string
	ClientID         string
	ClientSecret     string
	AuthorizationURI string
	TokenURI         string
	RedirectURI      string
	UserInfoURI      string
	Scopes           []string
}

// Errores de validación.
var (
	ErrMissingID               = errors.New("clientconfig: missing id")
	ErrMissingClientID         = errors.New("clientconfig: missing client_id")
	ErrInvalidAuthorizationURI = errors.New("clientconfig: invalid authorization_uri")
	ErrInvalidTokenURI         = errors.New("clientconfig: invalid token_uri")
	ErrInvalidRedirectURI      = errors.New("clientconfig: invalid redirect_uri")
	ErrInvalidUserInfoURI      = errors.New("clientconfig: invalid user_info_uri")
	ErrUnsupportedGrantType    = errors.New("clientconfig: unsupported grant type")
	ErrNoConfigurations        = errors.New("clientconfig: at least one client configuration is required")
	ErrDuplicateConfiguration  = errors.New("clientconfig: duplicate configuration id")
)

// New builds and validates a Configuration. The grant type is always
// authorization_code.
func New(p Params) (Configuration, error) {
	c := Configuration{
		ID:               strings.TrimSpace(p.ID),
		ClientName:       strings.TrimSpace(p.ClientName),
		ClientID:         strings.TrimSpace(p.ClientID),
		ClientSecret:     p.ClientSecret,
		AuthorizationURI: strings.TrimSpace(p.AuthorizationURI),
		TokenURI:         strings.TrimSpace(p.TokenURI),
		RedirectURI:      strings.TrimSpace(p.RedirectURI),
		UserInfoURI:      strings.TrimSpace(p.UserInfoURI),
		GrantType:        core.GrantTypeAuthorizationCode,
	}
	for _, s := range p.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			c.scopes = append(c.scopes, s)
		}
	}
	if c.ClientName == "" {
		c.ClientName = c.ID
	}
	if err := c.Validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// Scopes returns a copy of the requested scopes, in registration order.
func (c Configuration) Scopes() []string {
	return append([]string{}, c.scopes...)
}

// RedirectPath is the path component of the redirect URI; the callback route
// is registered on it.
func (c Configuration) RedirectPath() string {
	u, err := url.Parse(c.RedirectURI)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Validate checks the invariants of a registration.
func (c Configuration) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	if strings.ContainsAny(c.ID, "/?#") {
		return fmt.Errorf("%w: %q contains reserved characters", ErrMissingID, c.ID)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w (%s)", ErrMissingClientID, c.ID)
	}
	if !absoluteURL(c.AuthorizationURI) {
		return fmt.Errorf("%w (%s): %q", ErrInvalidAuthorizationURI, c.ID, c.AuthorizationURI)
	}
	if !absoluteURL(c.TokenURI) {
		return fmt.Errorf("%w (%s): %q", ErrInvalidTokenURI, c.ID, c.TokenURI)
	}
	if !absoluteURL(c.RedirectURI) {
		return fmt.Errorf("%w (%s): %q", ErrInvalidRedirectURI, c.ID, c.RedirectURI)
	}
	if c.UserInfoURI != "" && !absoluteURL(c.UserInfoURI) {
		return fmt.Errorf("%w (%s): %q", ErrInvalidUserInfoURI, c.ID, c.UserInfoURI)
	}
	if !c.GrantType.Supported() {
		return fmt.Errorf("%w (%s): %s", ErrUnsupportedGrantType, c.ID, c.GrantType)
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
