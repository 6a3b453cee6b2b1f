// Package exchange trades an authorization code for tokens at the token
// endpoint.
//
// Every failure wraps core.ErrTokenExchangeFailed. Transport failures and
// timeouts additionally match core.ErrTokenEndpointUnreachable; an error body
// from the server is available through core.RemoteError.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// DefaultTimeout bounds a single token call.
const DefaultTimeout = 5 * time.Second

// maxBody caps how much of the token response is read.
const maxBody = 1 << 20

// Exchanger is the token exchange step of the grant.
type Exchanger interface {
	Exchange(ctx context.Context, cfg clientconfig.Configuration, attrs core.AuthorizationResponseAttributes) (*core.TokenResponseAttributes, error)
}

// HTTPExchanger posts a form-encoded token request with net/http. It makes a
// single attempt.
type HTTPExchanger struct {
	http    *http.Client
	timeout time.Duration
}

// Option configures an HTTPExchanger.
type Option func(*HTTPExchanger)

// WithHTTPClient replaces the underlying client. Its Timeout is overridden.
func WithHTTPClient(c *http.Client) Option {
	return func(e *HTTPExchanger) {
		cp := *c
		e.http = &cp
	}
}

// WithTimeout sets the per-call deadline. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(e *HTTPExchanger) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewHTTPExchanger(opts ...Option) *HTTPExchanger {
	e := &HTTPExchanger{http: &http.Client{}, timeout: DefaultTimeout}
	for _, o := range opts {
		o(e)
	}
	e.http.Timeout = e.timeout
	return e
}

func (e *HTTPExchanger) Exchange(ctx context.Context, cfg clientconfig.Configuration, attrs core.AuthorizationResponseAttributes) (*core.TokenResponseAttributes, error) {
	if attrs.Code == "" {
		return nil, fmt.Errorf("%w: missing code", core.ErrMalformedCallback)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	form := url.Values{}
	form.Set(core.ParamGrantType, core.GrantTypeAuthorizationCode.String())
	form.Set(core.ParamClientID, cfg.ClientID)
	form.Set(core.ParamClientSecret, cfg.ClientSecret)
	form.Set(core.ParamRedirectURI, cfg.RedirectURI)
	form.Set(core.ParamCode, attrs.Code)
	if scopes := cfg.Scopes(); len(scopes) > 0 {
		form.Set(core.ParamScope, core.JoinScope(scopes))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", core.ErrTokenExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTokenEndpointUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", core.ErrTokenEndpointUnreachable, err)
	}
	return parseTokenResponse(resp.StatusCode, body)
}

// tokenResponse is the JSON body of the token endpoint, success or error.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    expiresIn `json:"expires_in"`
	Scope        string    `json:"scope"`
	RefreshToken string    `json:"refresh_token"`

	Error     string `json:"error,omitempty"`
	ErrorDesc string `json:"error_description,omitempty"`
	ErrorURI  string `json:"error_uri,omitempty"`
}

// expiresIn accepts both 3600 and "3600".
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("expires_in: %w", err)
		}
		n = int64(f)
	}
	if n < 0 {
		n = 0
	}
	*e = expiresIn(n)
	return nil
}

func parseTokenResponse(status int, body []byte) (*core.TokenResponseAttributes, error) {
	var tr tokenResponse
	jsonErr := json.Unmarshal(body, &tr)

	// Some providers (GitHub) answer 200 with an error body.
	if jsonErr == nil && tr.Error != "" {
		return nil, core.ExchangeRejected(&core.ProtocolError{
			Code:        tr.Error,
			Description: tr.ErrorDesc,
			URI:         tr.ErrorURI,
		})
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: %d", core.ErrTokenEndpointStatus, status)
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTokenResponseMalformed, jsonErr)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", core.ErrTokenResponseMalformed)
	}

	return &core.TokenResponseAttributes{
		AccessToken:     tr.AccessToken,
		AccessTokenType: core.ParseAccessTokenType(tr.TokenType),
		ExpiresIn:       int64(tr.ExpiresIn),
		Scopes:          core.ParseScope(tr.Scope),
		RefreshToken:    tr.RefreshToken,
	}, nil
}
