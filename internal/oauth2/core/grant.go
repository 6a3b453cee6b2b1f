// Package core holds the protocol vocabulary shared by every stage of the
// authorization code flow: grant types, token types, the parsed callback and
// token-endpoint responses, and the error taxonomy.
package core

// AuthorizationGrantType identifies an OAuth2 grant.
type AuthorizationGrantType string

const (
	GrantTypeAuthorizationCode AuthorizationGrantType = "authorization_code"
	GrantTypeImplicit          AuthorizationGrantType = "implicit"
	GrantTypePassword          AuthorizationGrantType = "password"
	GrantTypeClientCredentials AuthorizationGrantType = "client_credentials"
	GrantTypeRefreshToken      AuthorizationGrantType = "refresh_token"
)

// String returns the wire value used in grant_type.
func (g AuthorizationGrantType) String() string { return string(g) }

// Supported reports whether this client can drive the grant. Only the
// authorization code grant is implemented.
func (g AuthorizationGrantType) Supported() bool {
	return g == GrantTypeAuthorizationCode
}

// ResponseTypeCode is the response_type sent on the authorization request.
const ResponseTypeCode = "code"

// Nombres de parámetros del protocolo.
const (
	ParamResponseType     = "response_type"
	ParamClientID         = "client_id"
	ParamClientSecret     = "client_secret"
	ParamRedirectURI      = "redirect_uri"
	ParamScope            = "scope"
	ParamState            = "state"
	ParamCode             = "code"
	ParamGrantType        = "grant_type"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
	ParamErrorURI         = "error_uri"
)
