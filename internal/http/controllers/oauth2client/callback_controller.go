package oauth2client

import (
	"errors"
	"fmt"
	"net/http"

	dto "github.com/dropDatabas3/oauth2client/internal/http/dto/oauth2client"
	httperrors "github.com/dropDatabas3/oauth2client/internal/http/errors"
	"github.com/dropDatabas3/oauth2client/internal/http/helpers"
	svc "github.com/dropDatabas3/oauth2client/internal/http/services/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/session"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
)

// SuccessHandler recibe la sesión creada por el callback. La sesión también
// está en r.Context() (session.FromContext).
type SuccessHandler func(w http.ResponseWriter, r *http.Request, s *session.AuthenticatedSession)

// FailureHandler recibe el error del callback.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrPrincipalResolution envuelve errores del PrincipalResolver.
var ErrPrincipalResolution = errors.New("oauth2client: principal resolution failed")

// CallbackController maneja GET {redirect_uri path}.
type CallbackController struct {
	service   svc.GrantService
	binder    *helpers.FlowBinder
	resolver  session.PrincipalResolver
	onSuccess SuccessHandler
	onFailure FailureHandler
}

// NewCallbackController crea el controller.
func NewCallbackController(s svc.GrantService, deps ControllerDeps) *CallbackController {
	c := &CallbackController{
		service:   s,
		binder:    deps.Binder,
		resolver:  deps.Resolver,
		onSuccess: deps.OnSuccess,
		onFailure: deps.OnFailure,
	}
	if c.onSuccess == nil {
		c.onSuccess = DefaultSuccessHandler
	}
	if c.onFailure == nil {
		c.onFailure = DefaultFailureHandler
	}
	return c
}

// Callback completa el flujo con la respuesta del authorization server.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	key, err := c.binder.Lookup(r)
	if err != nil && !errors.Is(err, helpers.ErrNoFlowCookie) {
		log.Warn("rejected flow cookie", logger.Err(err))
	}
	// El state se consume en cualquier caso; la cookie ya no sirve.
	c.binder.Clear(w)

	sess, err := c.service.Complete(ctx, svc.CallbackRequest{
		SessionKey: key,
		Response:   core.ParseAuthorizationResponse(r.URL.Query()),
	})
	if err != nil {
		c.onFailure(w, r, err)
		return
	}

	if c.resolver != nil {
		p, authorities, err := c.resolver.ResolvePrincipal(ctx, sess.AccessToken(), sess.Configuration())
		if err != nil {
			log.Error("principal resolution failed", logger.ConfigID(sess.Configuration().ID), logger.Err(err))
			c.onFailure(w, r, fmt.Errorf("%w: %w", ErrPrincipalResolution, err))
			return
		}
		sess = sess.WithPrincipal(p, authorities)
	}

	c.onSuccess(w, r.WithContext(session.NewContext(ctx, sess)), sess)
}

// DefaultSuccessHandler escribe un resumen JSON de la sesión sin los tokens.
func DefaultSuccessHandler(w http.ResponseWriter, r *http.Request, s *session.AuthenticatedSession) {
	at := s.AccessToken()
	resp := dto.SessionResponse{
		ConfigurationID: s.Configuration().ID,
		Authenticated:   s.Authenticated(),
		Authorities:     s.Authorities(),
		TokenType:       string(at.Type),
		Scope:           at.Scopes,
		IssuedAt:        at.IssuedAt,
		HasRefreshToken: s.RefreshToken() != nil,
	}
	if s.Authenticated() {
		resp.Principal = s.Principal().Name()
	}
	if !at.ExpiresAt.IsZero() {
		exp := at.ExpiresAt
		resp.ExpiresAt = &exp
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// DefaultFailureHandler escribe el envelope de error que corresponde al tipo
// de fallo del flujo.
func DefaultFailureHandler(w http.ResponseWriter, r *http.Request, err error) {
	httperrors.WriteError(w, httperrors.FromFlowError(err))
}
