// Package router arma el chi.Router con las rutas del flujo, health y métricas.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/oauth2client/internal/http/controllers/health"
	ctrl "github.com/dropDatabas3/oauth2client/internal/http/controllers/oauth2client"
	httperrors "github.com/dropDatabas3/oauth2client/internal/http/errors"
	mw "github.com/dropDatabas3/oauth2client/internal/http/middlewares"
	"github.com/dropDatabas3/oauth2client/internal/metrics"
	"github.com/dropDatabas3/oauth2client/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	OAuth2  *ctrl.Controllers
	Health  *healthctrl.HealthController
	Metrics *metrics.Metrics // opcional; sin él no se expone /metrics

	// AuthorizeBaseURI es el prefijo de GET {base}/{configId}.
	AuthorizeBaseURI string
	// CallbackPaths son los paths de los redirect_uri registrados.
	CallbackPaths []string
	// MetricsPath default: /metrics
	MetricsPath string
	RateLimiter rate.Limiter // opcional
	// RateKey default: IP del peer (mw.IPRateKey).
	RateKey mw.RateKeyFunc
}

// New construye el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	// Las métricas van dentro del mux: necesitan el RouteContext de chi.
	r.Use(d.Metrics.Middleware(routePattern))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.OAuth2 != nil {
		RegisterOAuth2ClientRoutes(r, OAuth2ClientRouterDeps{
			Controllers:      d.OAuth2,
			AuthorizeBaseURI: d.AuthorizeBaseURI,
			CallbackPaths:    d.CallbackPaths,
			RateLimiter:      d.RateLimiter,
			RateKey:          d.RateKey,
		})
	}
	if d.Health != nil {
		RegisterHealthRoutes(r, HealthRouterDeps{Controller: d.Health})
	}
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics.Handler())
	}
	return mw.Chain(r,
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
	)
}

// routePattern etiqueta métricas con la ruta registrada y no con el path real.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
