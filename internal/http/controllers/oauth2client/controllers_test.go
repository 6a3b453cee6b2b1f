package oauth2client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/oauth2client/internal/cache"
	dto "github.com/dropDatabas3/oauth2client/internal/http/dto/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/http/helpers"
	svc "github.com/dropDatabas3/oauth2client/internal/http/services/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/session"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/state"
)

type stubExchanger struct {
	calls atomic.Int32
	err   error
}

func (s *stubExchanger) Exchange(_ context.Context, _ clientconfig.Configuration, attrs core.AuthorizationResponseAttributes) (*core.TokenResponseAttributes, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &core.TokenResponseAttributes{
		AccessToken:     "abc",
		AccessTokenType: core.AccessTokenTypeBearer,
		ExpiresIn:       3600,
		Scopes:          []string{"read"},
		RefreshToken:    "r1",
	}, nil
}

type env struct {
	router http.Handler
	ex     *stubExchanger
}

func newEnv(t *testing.T, deps ControllerDeps) *env {
	t.Helper()
	cfg, err := clientconfig.New(clientconfig.Params{
		ID:               "google",
		ClientID:         "cid",
		AuthorizationURI: "https://idp.example.com/auth",
		TokenURI:         "https://idp.example.com/token",
		RedirectURI:      "https://app.example.com/login/oauth2/code/google",
		Scopes:           []string{"read"},
	})
	require.NoError(t, err)
	repo, err := clientconfig.NewInMemoryRepository(cfg)
	require.NoError(t, err)

	ex := &stubExchanger{}
	services := svc.NewServices(svc.Deps{
		Repository: repo,
		Store:      state.NewCacheStore(cache.NewMemory("", 0), nil),
		Exchanger:  ex,
	})
	binder, err := helpers.NewFlowBinder(helpers.FlowBinderConfig{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	deps.Binder = binder

	c := NewControllers(services, deps)
	r := chi.NewRouter()
	r.HandleFunc("/oauth2/authorize/code/{"+ParamConfigID+"}", c.Authorize.Authorize)
	r.HandleFunc("/login/oauth2/code/google", c.Callback.Callback)
	return &env{router: r, ex: ex}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// initiate devuelve la cookie de flujo y el state de la redirección.
func (e *env) initiate(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/oauth2/authorize/code/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], loc.Query().Get("state")
}

func (e *env) callback(ck *http.Cookie, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/login/oauth2/code/google?"+query, nil)
	if ck != nil {
		req.AddCookie(ck)
	}
	return e.do(req)
}

func TestAuthorizeRedirects(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	ck, st := e.initiate(t)

	assert.Equal(t, helpers.DefaultFlowCookieName, ck.Name)
	assert.True(t, ck.HttpOnly)
	assert.NotContains(t, ck.Value, st, "the cookie never carries the state")
	assert.Len(t, st, 43)
}

func TestAuthorizeUnknownConfiguration(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	rec := e.do(httptest.NewRequest(http.MethodGet, "/oauth2/authorize/code/myspace", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), "UNKNOWN_CONFIGURATION")
}

func TestAuthorizeMethodNotAllowed(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	rec := e.do(httptest.NewRequest(http.MethodPost, "/oauth2/authorize/code/google", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET", rec.Header().Get("Allow"))
}

func TestCallbackSuccess(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	ck, st := e.initiate(t)

	rec := e.callback(ck, url.Values{"code": {"abc123"}, "state": {st}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotContains(t, rec.Body.String(), "abc", "token values are redacted")

	var body dto.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "google", body.ConfigurationID)
	assert.False(t, body.Authenticated)
	assert.Equal(t, "bearer", body.TokenType)
	assert.True(t, body.HasRefreshToken)
	require.NotNil(t, body.ExpiresAt)

	// La cookie se borra.
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestCallbackReplay(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	ck, st := e.initiate(t)
	q := url.Values{"code": {"abc123"}, "state": {st}}.Encode()

	require.Equal(t, http.StatusOK, e.callback(ck, q).Code)
	rec := e.callback(ck, q)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "STATE_MISMATCH")
	assert.Equal(t, int32(1), e.ex.calls.Load())
}

func TestCallbackWithoutCookie(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	_, st := e.initiate(t)

	rec := e.callback(nil, url.Values{"code": {"abc123"}, "state": {st}}.Encode())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int32(0), e.ex.calls.Load())
}

func TestCallbackDenied(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	ck, st := e.initiate(t)

	rec := e.callback(ck, url.Values{"error": {"access_denied"}, "error_description": {"no"}, "state": {st}}.Encode())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
	assert.NotContains(t, rec.Body.String(), `"no"`)
	assert.Equal(t, int32(0), e.ex.calls.Load())
}

func TestCallbackMalformed(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	ck, _ := e.initiate(t)

	rec := e.callback(ck, "code=abc123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "STATE_MISMATCH")
	assert.Equal(t, int32(0), e.ex.calls.Load())
}

func TestCallbackMalformedLooksLikeMismatch(t *testing.T) {
	e := newEnv(t, ControllerDeps{})

	ck, _ := e.initiate(t)
	missing := e.callback(ck, "code=abc123")
	ck, _ = e.initiate(t)
	forged := e.callback(ck, url.Values{"code": {"abc123"}, "state": {"forged"}}.Encode())

	assert.Equal(t, forged.Code, missing.Code)
	assert.JSONEq(t, forged.Body.String(), missing.Body.String())
}

func TestCallbackExchangeFailure(t *testing.T) {
	e := newEnv(t, ControllerDeps{})
	e.ex.err = core.ExchangeRejected(&core.ProtocolError{Code: "invalid_grant"})
	ck, st := e.initiate(t)

	rec := e.callback(ck, url.Values{"code": {"abc123"}, "state": {st}}.Encode())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_EXCHANGE_FAILED")
	assert.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestCallbackCustomHandlersAndResolver(t *testing.T) {
	var got *session.AuthenticatedSession
	var fromCtx bool
	e := newEnv(t, ControllerDeps{
		Resolver: session.PrincipalResolverFunc(func(_ context.Context, at core.AccessToken, _ clientconfig.Configuration) (session.Principal, []string, error) {
			return session.UserPrincipal{Subject: "u-1"}, []string{"ROLE_USER"}, nil
		}),
		OnSuccess: func(w http.ResponseWriter, r *http.Request, s *session.AuthenticatedSession) {
			got = s
			_, fromCtx = session.FromContext(r.Context())
			http.Redirect(w, r, "/home", http.StatusFound)
		},
	})
	ck, st := e.initiate(t)

	rec := e.callback(ck, url.Values{"code": {"abc123"}, "state": {st}}.Encode())
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/home", rec.Header().Get("Location"))
	require.NotNil(t, got)
	assert.True(t, fromCtx)
	assert.True(t, got.Authenticated())
	assert.Equal(t, "u-1", got.Principal().Name())
	assert.Equal(t, []string{"ROLE_USER"}, got.Authorities())
	assert.Equal(t, "abc", got.AccessToken().Value)
}

func TestCallbackResolverFailure(t *testing.T) {
	var failure error
	e := newEnv(t, ControllerDeps{
		Resolver: session.PrincipalResolverFunc(func(context.Context, core.AccessToken, clientconfig.Configuration) (session.Principal, []string, error) {
			return nil, nil, errors.New("userinfo down")
		}),
		OnFailure: func(w http.ResponseWriter, r *http.Request, err error) {
			failure = err
			DefaultFailureHandler(w, r, err)
		},
	})
	ck, st := e.initiate(t)

	rec := e.callback(ck, url.Values{"code": {"abc123"}, "state": {st}}.Encode())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.ErrorIs(t, failure, ErrPrincipalResolution)
}
