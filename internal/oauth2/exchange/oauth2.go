package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/authuri"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
	"golang.org/x/oauth2"
)

// OAuth2Exchanger performs the exchange through golang.org/x/oauth2 with
// client credentials sent in the form body.
type OAuth2Exchanger struct {
	http    *http.Client
	timeout time.Duration
}

func NewOAuth2Exchanger(base http.RoundTripper, timeout time.Duration) *OAuth2Exchanger {
	if base == nil {
		base = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OAuth2Exchanger{
		http:    &http.Client{Transport: acceptJSON{base}, Timeout: timeout},
		timeout: timeout,
	}
}

func (e *OAuth2Exchanger) Exchange(ctx context.Context, cfg clientconfig.Configuration, attrs core.AuthorizationResponseAttributes) (*core.TokenResponseAttributes, error) {
	if attrs.Code == "" {
		return nil, fmt.Errorf("%w: missing code", core.ErrMalformedCallback)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.http)

	var opts []oauth2.AuthCodeOption
	if scopes := cfg.Scopes(); len(scopes) > 0 {
		// Exchange no manda scope por su cuenta.
		opts = append(opts, oauth2.SetAuthURLParam(core.ParamScope, core.JoinScope(scopes)))
	}
	tok, err := authuri.Config(cfg).Exchange(ctx, attrs.Code, opts...)
	if err != nil {
		return nil, mapOAuth2Error(err)
	}

	out := &core.TokenResponseAttributes{
		AccessToken:     tok.AccessToken,
		AccessTokenType: core.ParseAccessTokenType(tok.TokenType),
		ExpiresIn:       tok.ExpiresIn,
		Scopes:          []string{},
		RefreshToken:    tok.RefreshToken,
	}
	if s, ok := tok.Extra(core.ParamScope).(string); ok {
		out.Scopes = core.ParseScope(s)
	}
	if out.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			out.ExpiresIn = int64(d.Round(time.Second) / time.Second)
		}
	}
	return out, nil
}

func mapOAuth2Error(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode != "" {
			return core.ExchangeRejected(&core.ProtocolError{
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
				URI:         re.ErrorURI,
			})
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("%w: %d", core.ErrTokenEndpointStatus, status)
	}
	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", core.ErrTokenEndpointUnreachable, err)
	}
	return fmt.Errorf("%w: %v", core.ErrTokenResponseMalformed, err)
}

// acceptJSON asks for a JSON body; GitHub otherwise answers form-encoded.
type acceptJSON struct{ base http.RoundTripper }

func (t acceptJSON) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(r)
}
