package clientconfig

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is returned by ApplyProvider for names with no template.
var ErrUnknownProvider = errors.New("clientconfig: unknown provider")

// Provider is a template of well-known endpoints.
type Provider struct {
	Name             string
	AuthorizationURI string
	TokenURI         string
	UserInfoURI      string
	Scopes           []string
}

var providers = map[string]Provider{
	"google": {
		Name:             "Google",
		AuthorizationURI: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURI:         "https://oauth2.googleapis.com/token",
		UserInfoURI:      "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:           []string{"openid", "email", "profile"},
	},
	"github": {
		Name:             "GitHub",
		AuthorizationURI: "https://github.com/login/oauth/authorize",
		TokenURI:         "https://github.com/login/oauth/access_token",
		UserInfoURI:      "https://api.github.com/user",
		Scopes:           []string{"read:user", "user:email"},
	},
}

// LookupProvider returns the template registered under name.
func LookupProvider(name string) (Provider, bool) {
	p, ok := providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ApplyProvider fills the blank endpoint, name and scope fields of p from the
// named template. Fields already set are left alone.
func ApplyProvider(p *Params, name string) error {
	tpl, ok := LookupProvider(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if strings.TrimSpace(p.ClientName) == "" {
		p.ClientName = tpl.Name
	}
	if strings.TrimSpace(p.AuthorizationURI) == "" {
		p.AuthorizationURI = tpl.AuthorizationURI
	}
	if strings.TrimSpace(p.TokenURI) == "" {
		p.TokenURI = tpl.TokenURI
	}
	if strings.TrimSpace(p.UserInfoURI) == "" {
		p.UserInfoURI = tpl.UserInfoURI
	}
	if len(p.Scopes) == 0 {
		p.Scopes = append([]string{}, tpl.Scopes...)
	}
	return nil
}
