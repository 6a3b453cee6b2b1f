package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
)

// UserPrincipal is a principal built from a user-info document.
type UserPrincipal struct {
	Subject     string         `json:"sub"`
	Login       string         `json:"login,omitempty"`
	DisplayName string         `json:"name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Attributes  map[string]any `json:"-"`
}

// Name prefers the subject, then the login, then the email.
func (u UserPrincipal) Name() string {
	switch {
	case u.Subject != "":
		return u.Subject
	case u.Login != "":
		return u.Login
	default:
		return u.Email
	}
}

// PrincipalResolver turns an access token into the identity it represents.
// It runs after the grant and is host-supplied.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, at core.AccessToken, cfg clientconfig.Configuration) (Principal, []string, error)
}

// PrincipalResolverFunc adapts a function to PrincipalResolver.
type PrincipalResolverFunc func(ctx context.Context, at core.AccessToken, cfg clientconfig.Configuration) (Principal, []string, error)

func (f PrincipalResolverFunc) ResolvePrincipal(ctx context.Context, at core.AccessToken, cfg clientconfig.Configuration) (Principal, []string, error) {
	return f(ctx, at, cfg)
}

var (
	ErrNoUserInfoURI = errors.New("session: configuration has no user_info_uri")
	ErrUserInfo      = errors.New("session: user info request failed")
)

// UserInfoResolver fetches user_info_uri with the access token as bearer.
// Authorities are the granted scopes prefixed with SCOPE_.
type UserInfoResolver struct {
	http *http.Client
}

func NewUserInfoResolver(c *http.Client) *UserInfoResolver {
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	return &UserInfoResolver{http: c}
}

func (r *UserInfoResolver) ResolvePrincipal(ctx context.Context, at core.AccessToken, cfg clientconfig.Configuration) (Principal, []string, error) {
	if cfg.UserInfoURI == "" {
		return nil, nil, ErrNoUserInfoURI
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURI, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	req.Header.Set("Authorization", "Bearer "+at.Value)
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	var doc map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: decode: %v", ErrUserInfo, err)
	}

	p := UserPrincipal{
		Subject:     str(doc["sub"]),
		Login:       str(doc["login"]),
		DisplayName: str(doc["name"]),
		Email:       str(doc["email"]),
		Attributes:  doc,
	}
	// GitHub has no sub; its numeric id is the stable identifier.
	if p.Subject == "" {
		p.Subject = str(doc["id"])
	}
	if p.Name() == "" {
		return nil, nil, fmt.Errorf("%w: no subject in user info", ErrUserInfo)
	}

	auth := make([]string, 0, len(at.Scopes))
	for _, s := range at.Scopes {
		auth = append(auth, "SCOPE_"+s)
	}
	return p, auth, nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
