// Package helpers contiene utilidades HTTP compartidas por los controllers.
package helpers

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	DefaultFlowCookieName = "oauth2_flow"
	flowAudience          = "oauth2client.flow"
	hkdfInfo              = "oauth2client flow cookie v1"

	// MinSecretLen es el largo mínimo del secreto de la cookie.
	MinSecretLen = 32
)

var (
	ErrSecretTooShort    = fmt.Errorf("helpers: flow cookie secret must be at least %d bytes", MinSecretLen)
	ErrNoFlowCookie      = errors.New("helpers: no flow cookie")
	ErrInvalidFlowCookie = errors.New("helpers: invalid flow cookie")
)

// FlowBinderConfig configura FlowBinder.
type FlowBinderConfig struct {
	Cookie CookieOptions
	// TTL de la cookie; debería coincidir con el TTL del state.
	TTL    time.Duration
	Secret []byte
	Now    func() time.Time
}

// FlowBinder liga el browser a su solicitud de autorización pendiente. La
// cookie es un JWT HS256 cuyo jti es la clave de sesión del state store; no
// contiene el state.
type FlowBinder struct {
	opts CookieOptions
	ttl  time.Duration
	key  []byte
	now  func() time.Time
}

func NewFlowBinder(cfg FlowBinderConfig) (*FlowBinder, error) {
	if len(cfg.Secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, cfg.Secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("helpers: derive cookie key: %w", err)
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = DefaultFlowCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &FlowBinder{opts: cfg.Cookie, ttl: cfg.TTL, key: key, now: cfg.Now}, nil
}

// Resolve devuelve la clave de sesión del browser. Si no hay cookie válida
// genera una nueva y fresh es true.
func (b *FlowBinder) Resolve(r *http.Request) (key string, fresh bool) {
	if k, err := b.Lookup(r); err == nil {
		return k, false
	}
	return uuid.NewString(), true
}

// Lookup valida la cookie y devuelve la clave de sesión.
func (b *FlowBinder) Lookup(r *http.Request) (string, error) {
	ck, err := r.Cookie(b.opts.Name)
	if err != nil || ck.Value == "" {
		return "", ErrNoFlowCookie
	}
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(ck.Value, claims,
		func(*jwt.Token) (any, error) { return b.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(flowAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFlowCookie, err)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return "", fmt.Errorf("%w: bad session key", ErrInvalidFlowCookie)
	}
	return claims.ID, nil
}

// Issue firma key y escribe la cookie en la respuesta.
func (b *FlowBinder) Issue(w http.ResponseWriter, key string) error {
	now := b.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        key,
		Audience:  jwt.ClaimStrings{flowAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
	})
	signed, err := tok.SignedString(b.key)
	if err != nil {
		return fmt.Errorf("helpers: sign flow cookie: %w", err)
	}
	http.SetCookie(w, BuildCookie(b.opts, signed, b.ttl, now))
	return nil
}

// Clear borra la cookie del browser.
func (b *FlowBinder) Clear(w http.ResponseWriter) {
	http.SetCookie(w, BuildDeletionCookie(b.opts))
}
