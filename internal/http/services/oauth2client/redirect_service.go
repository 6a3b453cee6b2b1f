package oauth2client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/metrics"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/authuri"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/state"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
)

// RedirectService inicia el flujo: persiste un state nuevo y devuelve la URL
// del authorization endpoint. No hace llamadas de red.
type RedirectService interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
}

// AuthorizeRequest identifica la configuración y el browser que inicia.
type AuthorizeRequest struct {
	ConfigurationID string
	SessionKey      string
}

// AuthorizeResult es la redirección a emitir.
type AuthorizeResult struct {
	RedirectURL     string
	State           string
	ConfigurationID string
}

// ErrMissingSessionKey indica un request sin clave de sesión.
var ErrMissingSessionKey = errors.New("oauth2client: missing session key")

// RedirectDeps contiene dependencias para el redirect service.
type RedirectDeps struct {
	Repository clientconfig.Repository
	Store      state.Store
	Builder    authuri.Builder
	Metrics    *metrics.Metrics
	StateTTL   time.Duration
	Now        func() time.Time
}

type redirectService struct {
	repo     clientconfig.Repository
	store    state.Store
	builder  authuri.Builder
	metrics  *metrics.Metrics
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewRedirectService crea un nuevo RedirectService.
func NewRedirectService(d RedirectDeps) RedirectService {
	if d.Builder == nil {
		d.Builder = authuri.DefaultBuilder{}
	}
	if d.StateTTL <= 0 {
		d.StateTTL = state.DefaultTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &redirectService{
		repo:     d.Repository,
		store:    d.Store,
		builder:  d.Builder,
		metrics:  d.Metrics,
		ttl:      d.StateTTL,
		now:      d.Now,
		generate: state.Generate,
	}
}

func (s *redirectService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("oauth2.redirect"),
		logger.ConfigID(req.ConfigurationID),
	)

	cfg, err := s.repo.FindByID(req.ConfigurationID)
	if err != nil {
		log.Warn("unknown client configuration")
		s.metrics.AuthorizationRequest(req.ConfigurationID, core.Kind(err))
		return nil, err
	}
	if req.SessionKey == "" {
		s.metrics.AuthorizationRequest(cfg.ID, "internal")
		return nil, ErrMissingSessionKey
	}

	st, err := s.generate()
	if err != nil {
		log.Error("failed to generate state", logger.Err(err))
		s.metrics.AuthorizationRequest(cfg.ID, "internal")
		return nil, err
	}

	uri, err := s.builder.Build(cfg, st)
	if err != nil {
		log.Error("failed to build authorization uri", logger.Err(err))
		s.metrics.AuthorizationRequest(cfg.ID, "internal")
		return nil, fmt.Errorf("oauth2client: build authorization uri: %w", err)
	}

	rec := state.NewRecord(st, cfg.ID, s.now(), s.ttl)
	if err := s.store.Save(ctx, req.SessionKey, rec, s.ttl); err != nil {
		log.Error("failed to save authorization request state", logger.Err(err))
		s.metrics.AuthorizationRequest(cfg.ID, "internal")
		return nil, err
	}

	log.Info("authorization request issued",
		logger.ClientID(cfg.ClientID),
		logger.StatePrefix(st),
	)
	s.metrics.AuthorizationRequest(cfg.ID, core.Kind(nil))

	return &AuthorizeResult{
		RedirectURL:     uri,
		State:           st,
		ConfigurationID: cfg.ID,
	}, nil
}
