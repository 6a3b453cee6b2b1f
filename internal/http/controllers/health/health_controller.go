// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"

	dto "github.com/dropDatabas3/oauth2client/internal/http/dto/health"
	httperrors "github.com/dropDatabas3/oauth2client/internal/http/errors"
	"github.com/dropDatabas3/oauth2client/internal/http/helpers"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
)

// Checker verifica una dependencia (ej. el state store).
type Checker func(ctx context.Context) error

// HealthController maneja GET /healthz.
type HealthController struct {
	store Checker
}

// NewHealthController crea el controller; store puede ser nil.
func NewHealthController(store Checker) *HealthController {
	return &HealthController{store: store}
}

func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Healthz"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	resp := dto.HealthResponse{Status: "ok"}
	if c.store != nil {
		if err := c.store(ctx); err != nil {
			log.Warn("state store unhealthy", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("state_store").WithCause(err))
			return
		}
		resp.Store = "ok"
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
