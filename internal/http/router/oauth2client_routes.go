package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/oauth2client/internal/http/controllers/oauth2client"
	mw "github.com/dropDatabas3/oauth2client/internal/http/middlewares"
	"github.com/dropDatabas3/oauth2client/internal/rate"
)

// DefaultAuthorizeBaseURI es el prefijo por defecto del endpoint de inicio.
const DefaultAuthorizeBaseURI = "/oauth2/authorize/code"

// OAuth2ClientRouterDeps contiene las dependencias para las rutas del flujo.
type OAuth2ClientRouterDeps struct {
	Controllers      *ctrl.Controllers
	AuthorizeBaseURI string
	CallbackPaths    []string
	// RateLimiter acota los inicios por IP; cada inicio escribe un state.
	RateLimiter rate.Limiter // opcional
	RateKey     mw.RateKeyFunc
}

// RegisterOAuth2ClientRoutes registra el inicio y un callback por redirect path.
// Todas las respuestas del flujo son no-store.
func RegisterOAuth2ClientRoutes(r chi.Router, deps OAuth2ClientRouterDeps) {
	c := deps.Controllers
	base := strings.TrimRight(deps.AuthorizeBaseURI, "/")
	if base == "" {
		base = DefaultAuthorizeBaseURI
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())

		// GET {base}/{configId}
		r.With(mw.WithRateLimit(mw.RateLimitConfig{Limiter: deps.RateLimiter, KeyFunc: deps.RateKey})).
			HandleFunc(base+"/{"+ctrl.ParamConfigID+"}", c.Authorize.Authorize)

		// GET {redirect_uri path}?code&state
		for _, p := range deps.CallbackPaths {
			r.Handle(p, http.HandlerFunc(c.Callback.Callback))
		}
	})
}
