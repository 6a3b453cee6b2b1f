// Package server arma el handler HTTP con todas las dependencias a partir de
// la configuración.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/oauth2client/internal/cache"
	"github.com/dropDatabas3/oauth2client/internal/config"
	healthctrl "github.com/dropDatabas3/oauth2client/internal/http/controllers/health"
	ctrl "github.com/dropDatabas3/oauth2client/internal/http/controllers/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/http/helpers"
	mw "github.com/dropDatabas3/oauth2client/internal/http/middlewares"
	"github.com/dropDatabas3/oauth2client/internal/http/router"
	svc "github.com/dropDatabas3/oauth2client/internal/http/services/oauth2client"
	"github.com/dropDatabas3/oauth2client/internal/metrics"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/authuri"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/exchange"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/session"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/state"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
	"github.com/dropDatabas3/oauth2client/internal/rate"
)

// Deps son overrides opcionales del wiring, usados por el host y los tests.
type Deps struct {
	// HTTPClient para el token endpoint y user-info. Default: uno por driver.
	HTTPClient *http.Client
	// Store reemplaza el backend configurado en state.store.
	Store state.Store
	// Registry para las métricas. Default: uno nuevo.
	Registry  *prometheus.Registry
	Resolver  session.PrincipalResolver
	OnSuccess ctrl.SuccessHandler
	OnFailure ctrl.FailureHandler
	Now       func() time.Time
}

// App es el resultado del wiring.
type App struct {
	Handler    http.Handler
	Repository *clientconfig.InMemoryRepository
	Services   svc.Services
	Metrics    *metrics.Metrics
	Builder    authuri.Builder

	pg      *state.PostgresStore
	closers []func() error
}

// Build construye el App. Llamar Close al terminar.
func Build(ctx context.Context, cfg *config.Config, d Deps) (*App, error) {
	log := logger.From(ctx).With(logger.Layer("server"), logger.Component("wiring"))
	app := &App{}

	regs, err := cfg.Registrations()
	if err != nil {
		return nil, err
	}
	repo, err := clientconfig.NewInMemoryRepository(regs...)
	if err != nil {
		return nil, err
	}
	app.Repository = repo

	if cfg.Metrics.Enabled {
		m, err := metrics.New(d.Registry)
		if err != nil {
			return nil, fmt.Errorf("server: metrics: %w", err)
		}
		app.Metrics = m
	}

	store, ping := d.Store, func(context.Context) error { return nil }
	if store == nil {
		store, ping, err = app.buildStore(ctx, cfg)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	var ex exchange.Exchanger
	switch cfg.Exchange.Driver {
	case "oauth2":
		var base http.RoundTripper
		if d.HTTPClient != nil {
			base = d.HTTPClient.Transport
		}
		ex = exchange.NewOAuth2Exchanger(base, cfg.ExchangeTimeout())
		app.Builder = authuri.OAuth2Builder{}
	default:
		opts := []exchange.Option{exchange.WithTimeout(cfg.ExchangeTimeout())}
		if d.HTTPClient != nil {
			opts = append(opts, exchange.WithHTTPClient(d.HTTPClient))
		}
		ex = exchange.NewHTTPExchanger(opts...)
		app.Builder = authuri.DefaultBuilder{}
	}

	app.Services = svc.NewServices(svc.Deps{
		Repository: repo,
		Store:      store,
		Builder:    app.Builder,
		Exchanger:  ex,
		Metrics:    app.Metrics,
		StateTTL:   cfg.StateTTL(),
		Now:        d.Now,
	})

	binder, err := helpers.NewFlowBinder(helpers.FlowBinderConfig{
		Cookie: helpers.CookieOptions{
			Name:     cfg.Cookie.Name,
			Path:     cfg.Cookie.Path,
			Domain:   cfg.Cookie.Domain,
			SameSite: cfg.Cookie.SameSite,
			Secure:   cfg.Cookie.Secure,
		},
		TTL:    cfg.StateTTL(),
		Secret: []byte(cfg.Cookie.Secret),
		Now:    d.Now,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	resolver := d.Resolver
	if resolver == nil && cfg.UserInfo.Enabled {
		resolver = session.NewUserInfoResolver(d.HTTPClient)
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		limiter = app.buildLimiter(cfg)
	}
	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	var metricsPath string
	if app.Metrics != nil {
		metricsPath = cfg.Metrics.Path
	}
	app.Handler = router.New(router.Deps{
		OAuth2: ctrl.NewControllers(app.Services, ctrl.ControllerDeps{
			Binder:    binder,
			Resolver:  resolver,
			OnSuccess: d.OnSuccess,
			OnFailure: d.OnFailure,
		}),
		Health:           healthctrl.NewHealthController(ping),
		Metrics:          app.Metrics,
		AuthorizeBaseURI: cfg.Authorization.BaseURI,
		CallbackPaths:    repo.RedirectPaths(),
		MetricsPath:      metricsPath,
		RateLimiter:      limiter,
		RateKey:          mw.TrustedProxyRateKey(proxies),
	})

	log.Info("oauth2 client wired",
		logger.Int("clients", len(regs)),
		logger.String("state_store", cfg.State.Store),
		logger.String("exchange_driver", cfg.Exchange.Driver),
	)
	return app, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config) (state.Store, healthctrl.Checker, error) {
	switch cfg.State.Store {
	case "postgres":
		pcfg, err := pgxpool.ParseConfig(cfg.State.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("server: postgres dsn: %w", err)
		}
		if cfg.State.Postgres.MaxConns > 0 {
			pcfg.MaxConns = cfg.State.Postgres.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("server: postgres connect: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		pg := state.NewPostgresStore(pool, nil)
		if cfg.State.Postgres.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, nil, err
			}
		}
		a.pg = pg
		return pg, pool.Ping, nil

	default:
		c, err := cache.New(ctx, cache.Config{
			Driver:          cfg.State.Store,
			Addr:            cfg.State.Redis.Addr,
			Password:        cfg.State.Redis.Password,
			DB:              cfg.State.Redis.DB,
			Prefix:          cfg.State.Redis.Prefix,
			CleanupInterval: cfg.CleanupInterval(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("server: state store: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		return state.NewCacheStore(c, nil), c.Ping, nil
	}
}

// buildLimiter comparte Redis con el state store cuando está configurado; si
// no, cuenta en memoria.
func (a *App) buildLimiter(cfg *config.Config) rate.Limiter {
	if cfg.State.Store == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.State.Redis.Addr,
			Password: cfg.State.Redis.Password,
			DB:       cfg.State.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return rate.NewRedisLimiter(client, cfg.State.Redis.Prefix+":rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
}

// RunJanitor borra periódicamente los states vencidos del backend Postgres.
// Los backends de cache expiran por TTL y no necesitan janitor; en ese caso
// bloquea hasta que ctx termine.
func (a *App) RunJanitor(ctx context.Context, every time.Duration) error {
	if a.pg == nil {
		<-ctx.Done()
		return nil
	}
	log := logger.From(ctx).With(logger.Layer("server"), logger.Component("state.janitor"))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := a.pg.Prune(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("prune failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Debug("expired states pruned", logger.Int("count", int(n)))
			}
		}
	}
}

// Close libera conexiones del store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
