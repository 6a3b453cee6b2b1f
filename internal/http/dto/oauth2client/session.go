package oauth2client

import "time"

// SessionResponse es el resumen de la sesión que devuelve el success handler
// por defecto. Nunca incluye los valores de los tokens.
type SessionResponse struct {
	ConfigurationID string     `json:"configuration_id"`
	Authenticated   bool       `json:"authenticated"`
	Principal       string     `json:"principal,omitempty"`
	Authorities     []string   `json:"authorities,omitempty"`
	TokenType       string     `json:"token_type"`
	Scope           []string   `json:"scope"`
	IssuedAt        time.Time  `json:"issued_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
}
