package oauth2client

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/oauth2client/internal/http/errors"
	"github.com/dropDatabas3/oauth2client/internal/http/helpers"
	svc "github.com/dropDatabas3/oauth2client/internal/http/services/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
)

// ParamConfigID es el parámetro de ruta con el identificador de configuración.
const ParamConfigID = "configId"

// AuthorizeController maneja GET {base}/{configId}.
type AuthorizeController struct {
	service svc.RedirectService
	binder  *helpers.FlowBinder
}

// NewAuthorizeController crea el controller.
func NewAuthorizeController(s svc.RedirectService, b *helpers.FlowBinder) *AuthorizeController {
	return &AuthorizeController{service: s, binder: b}
}

// Authorize inicia el flujo y redirige al authorization endpoint.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Authorize"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	w.Header().Add("Vary", "Cookie")

	configID := chi.URLParam(r, ParamConfigID)
	key, fresh := c.binder.Resolve(r)

	res, err := c.service.Authorize(ctx, svc.AuthorizeRequest{ConfigurationID: configID, SessionKey: key})
	if err != nil {
		appErr := httperrors.FromFlowError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			log.Error("authorize failed", logger.ConfigID(configID), logger.Err(err))
		}
		httperrors.WriteError(w, appErr)
		return
	}

	// Se reemite siempre para que la cookie viva lo mismo que el state.
	if err := c.binder.Issue(w, key); err != nil {
		log.Error("issue flow cookie failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	log.Debug("redirecting to authorization endpoint",
		logger.ConfigID(res.ConfigurationID),
		logger.Bool("new_session", fresh),
	)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}
