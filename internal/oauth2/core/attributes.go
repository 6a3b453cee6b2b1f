package core

import (
	"net/url"
	"strings"
)

// AuthorizationResponseAttributes is the parsed callback of the authorization
// code grant. Exactly one of Code or Error is expected.
type AuthorizationResponseAttributes struct {
	Code  string
	State string
	Error *ProtocolError
}

// ParseAuthorizationResponse reads code, state and error parameters from a
// callback query.
func ParseAuthorizationResponse(q url.Values) AuthorizationResponseAttributes {
	attrs := AuthorizationResponseAttributes{
		Code:  strings.TrimSpace(q.Get(ParamCode)),
		State: strings.TrimSpace(q.Get(ParamState)),
	}
	if code := strings.TrimSpace(q.Get(ParamError)); code != "" {
		attrs.Error = &ProtocolError{
			Code:        code,
			Description: strings.TrimSpace(q.Get(ParamErrorDescription)),
			URI:         strings.TrimSpace(q.Get(ParamErrorURI)),
		}
	}
	return attrs
}

// Denied reports whether the authorization server returned an error.
func (a AuthorizationResponseAttributes) Denied() bool { return a.Error != nil }
