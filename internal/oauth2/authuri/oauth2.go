package authuri

import (
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"golang.org/x/oauth2"
)

// OAuth2Builder delegates to golang.org/x/oauth2. Its query is sorted by key
// rather than emitted in the fixed order of DefaultBuilder, and spaces are
// encoded as '+'.
type OAuth2Builder struct {
	// Options are extra parameters appended to every request (for example
	// oauth2.AccessTypeOffline).
	Options []oauth2.AuthCodeOption
}

func (b OAuth2Builder) Build(cfg clientconfig.Configuration, state string) (string, error) {
	if state == "" {
		return "", ErrEmptyState
	}
	return Config(cfg).AuthCodeURL(state, b.Options...), nil
}

// Config maps a client configuration onto an oauth2.Config.
func Config(cfg clientconfig.Configuration) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizationURI,
			TokenURL:  cfg.TokenURI,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
