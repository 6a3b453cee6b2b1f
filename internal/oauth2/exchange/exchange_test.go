package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T, tokenURI string) clientconfig.Configuration {
	t.Helper()
	c, err := clientconfig.New(clientconfig.Params{
		ID:               "google",
		ClientID:         "cid",
		ClientSecret:     "csecret",
		AuthorizationURI: "https://idp.example.com/auth",
		TokenURI:         tokenURI,
		RedirectURI:      "https://app.example.com/login/oauth2/code/google",
		Scopes:           []string{"read", "write"},
	})
	require.NoError(t, err)
	return c
}

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func exchangers() map[string]Exchanger {
	return map[string]Exchanger{
		"http":   NewHTTPExchanger(WithTimeout(time.Second)),
		"oauth2": NewOAuth2Exchanger(nil, time.Second),
	}
}

var code = core.AuthorizationResponseAttributes{Code: "abc123", State: "s"}

func TestExchangeSuccess(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK,
		`{"access_token":"abc","token_type":"bearer","expires_in":3600,"scope":"read write","refresh_token":"r1"}`)
	for name, ex := range exchangers() {
		t.Run(name, func(t *testing.T) {
			got, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
			require.NoError(t, err)
			assert.Equal(t, "abc", got.AccessToken)
			assert.Equal(t, core.AccessTokenTypeBearer, got.AccessTokenType)
			assert.InDelta(t, 3600, got.ExpiresIn, 1)
			assert.Equal(t, []string{"read", "write"}, got.Scopes)
			assert.Equal(t, "r1", got.RefreshToken)
		})
	}
}

func TestExchangeMissingScopeAndTypes(t *testing.T) {
	cases := map[string]core.AccessTokenType{
		`{"access_token":"abc","token_type":"MAC"}`:  core.AccessTokenTypeMAC,
		`{"access_token":"abc","token_type":"DPoP"}`: core.AccessTokenTypeUnrecognized,
		`{"access_token":"abc"}`:                     core.AccessTokenTypeUnrecognized,
	}
	for body, want := range cases {
		srv, _ := tokenServer(t, http.StatusOK, body)
		for name, ex := range exchangers() {
			got, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
			require.NoError(t, err, name)
			assert.Equal(t, want, got.AccessTokenType, "%s %s", name, body)
			assert.NotNil(t, got.Scopes)
			assert.Empty(t, got.Scopes)
			assert.Empty(t, got.RefreshToken)
		}
	}
}

func TestExchangeExpiresInString(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, `{"access_token":"abc","expires_in":"120"}`)
	got, err := NewHTTPExchanger().Exchange(context.Background(), newConfig(t, srv.URL), code)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.ExpiresIn)
}

func TestExchangeRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "csecret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "abc123", r.PostForm.Get("code"))
		assert.Equal(t, "https://app.example.com/login/oauth2/code/google", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "read write", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	}))
	t.Cleanup(srv.Close)

	for name, ex := range exchangers() {
		_, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
		require.NoError(t, err, name)
	}
}

func TestExchangeRequestWithoutScopes(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, has := r.PostForm["scope"]
		assert.False(t, has)
		seen = append(seen, r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	}))
	t.Cleanup(srv.Close)

	cfg, err := clientconfig.New(clientconfig.Params{
		ID:               "bare",
		ClientID:         "cid",
		AuthorizationURI: "https://idp.example.com/auth",
		TokenURI:         srv.URL,
		RedirectURI:      "https://app.example.com/login/oauth2/code/bare",
	})
	require.NoError(t, err)

	for name, ex := range exchangers() {
		_, err := ex.Exchange(context.Background(), cfg, code)
		require.NoError(t, err, name)
	}
	assert.Equal(t, []string{"abc123", "abc123"}, seen)
}

func TestExchangeProtocolError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusOK} {
		srv, _ := tokenServer(t, status, `{"error":"invalid_grant","error_description":"code expired"}`)
		for name, ex := range exchangers() {
			_, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
			require.Error(t, err, name)
			assert.ErrorIs(t, err, core.ErrTokenExchangeFailed)
			assert.False(t, core.IsRetryable(err))
			pe, ok := core.RemoteError(err)
			require.True(t, ok, "%s status %d", name, status)
			assert.Equal(t, "invalid_grant", pe.Code)
			assert.Equal(t, "code expired", pe.Description)
		}
	}
}

func TestExchangeBadStatusWithoutBody(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadGateway, `upstream down`)
	for name, ex := range exchangers() {
		_, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
		assert.ErrorIs(t, err, core.ErrTokenEndpointStatus, name)
		assert.ErrorIs(t, err, core.ErrTokenExchangeFailed, name)
	}
}

func TestExchangeMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"token_type":"bearer"}`} {
		srv, _ := tokenServer(t, http.StatusOK, body)
		for name, ex := range exchangers() {
			_, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
			assert.ErrorIs(t, err, core.ErrTokenExchangeFailed, "%s %s", name, body)
			assert.False(t, core.IsRetryable(err))
		}
		_, err := NewHTTPExchanger().Exchange(context.Background(), newConfig(t, srv.URL), code)
		assert.ErrorIs(t, err, core.ErrTokenResponseMalformed)
	}
}

func TestExchangeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	for name, ex := range exchangers() {
		_, err := ex.Exchange(context.Background(), newConfig(t, url), code)
		assert.ErrorIs(t, err, core.ErrTokenEndpointUnreachable, name)
		assert.True(t, core.IsRetryable(err), name)
	}
}

func TestExchangeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ex := NewHTTPExchanger(WithTimeout(50 * time.Millisecond))
	start := time.Now()
	_, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), code)
	assert.ErrorIs(t, err, core.ErrTokenEndpointUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExchangeMissingCode(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"abc"}`)
	for name, ex := range exchangers() {
		_, err := ex.Exchange(context.Background(), newConfig(t, srv.URL), core.AuthorizationResponseAttributes{State: "s"})
		assert.ErrorIs(t, err, core.ErrMalformedCallback, name)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestMapOAuth2ErrorFallback(t *testing.T) {
	err := mapOAuth2Error(errors.New("oauth2: server response missing access_token"))
	assert.ErrorIs(t, err, core.ErrTokenResponseMalformed)
}
