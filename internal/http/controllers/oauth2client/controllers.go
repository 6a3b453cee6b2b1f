// Package oauth2client contiene los controllers de los dos endpoints del flujo:
// inicio de la autorización y callback.
package oauth2client

import (
	"github.com/dropDatabas3/oauth2client/internal/http/helpers"
	svc "github.com/dropDatabas3/oauth2client/internal/http/services/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/session"
)

// ControllerDeps contiene las dependencias HTTP de los controllers.
type ControllerDeps struct {
	Binder    *helpers.FlowBinder
	Resolver  session.PrincipalResolver // opcional
	OnSuccess SuccessHandler            // default: DefaultSuccessHandler
	OnFailure FailureHandler            // default: DefaultFailureHandler
}

// Controllers agrupa los controllers del flujo.
type Controllers struct {
	Authorize *AuthorizeController
	Callback  *CallbackController
}

// NewControllers crea el aggregator.
func NewControllers(s svc.Services, deps ControllerDeps) *Controllers {
	return &Controllers{
		Authorize: NewAuthorizeController(s.Redirect, deps.Binder),
		Callback:  NewCallbackController(s.Grant, deps),
	}
}
