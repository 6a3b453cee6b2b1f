package helpers

import (
	"net/http"
	"strings"
	"time"
)

// ParseSameSite convierte el string de config a http.SameSite. Default: Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CookieOptions son los atributos comunes de las cookies emitidas.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	SameSite string
	Secure   bool
}

func (o CookieOptions) path() string {
	if o.Path == "" {
		return "/"
	}
	return o.Path
}

// BuildCookie arma una cookie HttpOnly con Expires y Max-Age según ttl.
func BuildCookie(o CookieOptions, value string, ttl time.Duration, now time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.path(),
		Domain:   strings.TrimSpace(o.Domain),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: ParseSameSite(o.SameSite),
	}
	if ttl > 0 {
		ck.Expires = now.Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

// BuildDeletionCookie devuelve una cookie que borra la anterior en el browser.
func BuildDeletionCookie(o CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     o.path(),
		Domain:   strings.TrimSpace(o.Domain),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: ParseSameSite(o.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
}
