// Package oauth2client contiene los services del flujo authorization code:
// el redirect stage (Authorize) y el grant stage (Complete).
package oauth2client

import (
	"time"

	"github.com/dropDatabas3/oauth2client/internal/metrics"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/authuri"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/exchange"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/state"
)

// Deps contiene las dependencias para crear los services.
type Deps struct {
	Repository clientconfig.Repository
	Store      state.Store
	Builder    authuri.Builder    // default: authuri.DefaultBuilder
	Exchanger  exchange.Exchanger // default: exchange.NewHTTPExchanger()
	Metrics    *metrics.Metrics   // opcional
	StateTTL   time.Duration      // default: state.DefaultTTL
	Now        func() time.Time
}

// Services agrupa los services del flujo.
type Services struct {
	Redirect RedirectService
	Grant    GrantService
}

// NewServices crea el agregador de services.
func NewServices(d Deps) Services {
	if d.Builder == nil {
		d.Builder = authuri.DefaultBuilder{}
	}
	if d.Exchanger == nil {
		d.Exchanger = exchange.NewHTTPExchanger()
	}
	if d.StateTTL <= 0 {
		d.StateTTL = state.DefaultTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return Services{
		Redirect: NewRedirectService(RedirectDeps{
			Repository: d.Repository,
			Store:      d.Store,
			Builder:    d.Builder,
			Metrics:    d.Metrics,
			StateTTL:   d.StateTTL,
			Now:        d.Now,
		}),
		Grant: NewGrantService(GrantDeps{
			Repository: d.Repository,
			Store:      d.Store,
			Exchanger:  d.Exchanger,
			Metrics:    d.Metrics,
			Now:        d.Now,
		}),
	}
}
