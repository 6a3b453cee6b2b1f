package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/oauth2client/internal/http/controllers/health"
)

// HealthRouterDeps contiene las dependencias para el router de health.
type HealthRouterDeps struct {
	Controller *ctrl.HealthController
}

// RegisterHealthRoutes registra GET /healthz. Público.
func RegisterHealthRoutes(r chi.Router, deps HealthRouterDeps) {
	r.HandleFunc("/healthz", deps.Controller.Healthz)
}
