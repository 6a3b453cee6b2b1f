package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// Genéricos.
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error inesperado en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Demasiadas solicitudes. Intente nuevamente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// Flujo authorization code.
var (
	ErrUnknownConfiguration = &AppError{
		Code:       "UNKNOWN_CONFIGURATION",
		Message:    "No existe una configuración de cliente con ese identificador.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrStateMismatch = &AppError{
		Code:       "STATE_MISMATCH",
		Message:    "La respuesta de autorización no corresponde a una solicitud pendiente.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAuthorizationDenied = &AppError{
		Code:       "AUTHORIZATION_DENIED",
		Message:    "El servidor de autorización rechazó la solicitud.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrTokenExchangeFailed = &AppError{
		Code:       "TOKEN_EXCHANGE_FAILED",
		Message:    "No se pudo canjear el código de autorización por un token.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// FromFlowError mapea los errores de core a su envelope HTTP. El código
// remoto, si existe, va en Detail; la descripción remota no se expone.
func FromFlowError(err error) *AppError {
	var base *AppError
	switch {
	case stderrors.Is(err, core.ErrUnknownConfiguration):
		base = ErrUnknownConfiguration
	case stderrors.Is(err, core.ErrStateMismatch):
		// Incluye ErrMalformedCallback: hacia afuera no se distinguen.
		base = ErrStateMismatch
	case stderrors.Is(err, core.ErrAuthorizationDenied):
		base = ErrAuthorizationDenied
	case stderrors.Is(err, core.ErrTokenExchangeFailed):
		base = ErrTokenExchangeFailed
	default:
		return FromError(err)
	}
	out := base.WithCause(err)
	if pe, ok := core.RemoteError(err); ok {
		out.Detail = pe.Code
	}
	return out
}
