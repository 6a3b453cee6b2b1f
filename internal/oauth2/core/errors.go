package core

import (
	"errors"
	"fmt"
)

// Error taxonomy of the flow. Every failure returned by the redirect and grant
// stages matches exactly one of the first four with errors.Is.
var (
	ErrUnknownConfiguration = errors.New("unknown client configuration")
	ErrStateMismatch        = errors.New("authorization state mismatch")
	ErrAuthorizationDenied  = errors.New("authorization denied")
	ErrTokenExchangeFailed  = errors.New("token exchange failed")

	// ErrMalformedCallback is reported to the host as a state mismatch but
	// keeps its own kind for diagnostics.
	ErrMalformedCallback = fmt.Errorf("%w: malformed callback", ErrStateMismatch)

	// Token exchange refinements, all wrapping ErrTokenExchangeFailed.
	ErrTokenEndpointUnreachable = fmt.Errorf("%w: token endpoint unreachable", ErrTokenExchangeFailed)
	ErrTokenEndpointStatus      = fmt.Errorf("%w: unexpected token endpoint status", ErrTokenExchangeFailed)
	ErrTokenResponseMalformed   = fmt.Errorf("%w: malformed token response", ErrTokenExchangeFailed)
)

// ProtocolError carries the error fields reported by the authorization server,
// either on the callback or in a token endpoint error body.
type ProtocolError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *ProtocolError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Denied wraps a callback error parameter as ErrAuthorizationDenied.
func Denied(pe *ProtocolError) error {
	return fmt.Errorf("%w: %w", ErrAuthorizationDenied, pe)
}

// ExchangeRejected wraps a token endpoint error body as ErrTokenExchangeFailed.
func ExchangeRejected(pe *ProtocolError) error {
	return fmt.Errorf("%w: %w", ErrTokenExchangeFailed, pe)
}

// RemoteError extracts the authorization server's error, if any.
func RemoteError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether the caller may try the exchange again with a
// fresh authorization. Only transport-level failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTokenEndpointUnreachable)
}

// Kind returns a stable label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownConfiguration):
		return "unknown_configuration"
	case errors.Is(err, ErrMalformedCallback):
		return "malformed_callback"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrAuthorizationDenied):
		return "authorization_denied"
	case errors.Is(err, ErrTokenExchangeFailed):
		return "exchange_error"
	default:
		return "internal"
	}
}
