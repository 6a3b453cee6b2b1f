package oauth2client

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/oauth2client/internal/metrics"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/core"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/exchange"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/session"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/state"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
	"go.uber.org/zap"
)

// GrantService completa el flujo a partir del callback. Cada llamada consume
// el state pendiente de la sesión, sea cual sea el resultado.
type GrantService interface {
	Complete(ctx context.Context, req CallbackRequest) (*session.AuthenticatedSession, error)
}

// CallbackRequest son los parámetros del callback.
type CallbackRequest struct {
	SessionKey string
	Response   core.AuthorizationResponseAttributes
}

// GrantDeps contiene dependencias para el grant service.
type GrantDeps struct {
	Repository clientconfig.Repository
	Store      state.Store
	Exchanger  exchange.Exchanger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type grantService struct {
	repo      clientconfig.Repository
	store     state.Store
	exchanger exchange.Exchanger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewGrantService crea un nuevo GrantService.
func NewGrantService(d GrantDeps) GrantService {
	if d.Exchanger == nil {
		d.Exchanger = exchange.NewHTTPExchanger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &grantService{
		repo:      d.Repository,
		store:     d.Store,
		exchanger: d.Exchanger,
		metrics:   d.Metrics,
		now:       d.Now,
	}
}

func (s *grantService) Complete(ctx context.Context, req CallbackRequest) (*session.AuthenticatedSession, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth2.grant"))

	sess, cfgID, err := s.complete(ctx, log, req)
	outcome := core.Kind(err)
	fields := []zap.Field{logger.ConfigID(cfgID), logger.Outcome(outcome)}
	if pe, ok := core.RemoteError(err); ok {
		fields = append(fields, logger.RemoteError(pe.Code))
	}
	switch {
	case err == nil:
		log.Info("authorization code grant completed", append(fields, logger.TokenType(string(sess.AccessToken().Type)))...)
	case errors.Is(err, core.ErrTokenExchangeFailed):
		log.Error("authorization code grant failed", append(fields, logger.Err(err))...)
	default:
		log.Warn("authorization code grant rejected", append(fields, logger.Err(err))...)
	}
	s.metrics.Callback(cfgID, outcome)
	return sess, err
}

func (s *grantService) complete(ctx context.Context, log *zap.Logger, req CallbackRequest) (*session.AuthenticatedSession, string, error) {
	if req.SessionKey == "" {
		return nil, "", fmt.Errorf("%w: no session", core.ErrStateMismatch)
	}

	rec, err := s.store.Take(ctx, req.SessionKey)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			log.Error("state store failure", logger.Err(err))
		}
		return nil, "", fmt.Errorf("%w: no pending authorization request", core.ErrStateMismatch)
	}

	resp := req.Response
	if resp.State == "" {
		return nil, rec.ConfigurationID, fmt.Errorf("%w: missing state", core.ErrMalformedCallback)
	}
	if subtle.ConstantTimeCompare([]byte(resp.State), []byte(rec.State)) != 1 {
		return nil, rec.ConfigurationID, fmt.Errorf("%w: state does not match", core.ErrStateMismatch)
	}
	if resp.Denied() {
		return nil, rec.ConfigurationID, core.Denied(resp.Error)
	}
	if resp.Code == "" {
		return nil, rec.ConfigurationID, fmt.Errorf("%w: missing code", core.ErrMalformedCallback)
	}

	cfg, err := s.repo.FindByID(rec.ConfigurationID)
	if err != nil {
		// The configuration existed when the request was issued.
		return nil, rec.ConfigurationID, fmt.Errorf("%w: configuration %q no longer registered", core.ErrStateMismatch, rec.ConfigurationID)
	}

	start := time.Now()
	tokens, err := s.exchanger.Exchange(ctx, cfg, resp)
	s.metrics.ObserveExchange(cfg.ID, core.Kind(err), time.Since(start))
	if err != nil {
		if !errors.Is(err, core.ErrTokenExchangeFailed) {
			err = fmt.Errorf("%w: %w", core.ErrTokenExchangeFailed, err)
		}
		return nil, cfg.ID, err
	}

	at, rt := tokens.Tokens(s.now())
	return session.New(cfg, at, rt), cfg.ID, nil
}
