package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/security/secretbox"
)

// EnvPrefix prefija todas las variables de entorno que pisan el YAML.
const EnvPrefix = "OAUTH2CLIENT_"

// minCookieSecret coincide con helpers.MinSecretLen.
const minCookieSecret = 32

var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
	ErrNoClients     = errors.New("config: at least one client is required")
	ErrSecretBoxKey  = errors.New("config: encrypted client_secret requires " + EnvPrefix + SecretBoxKeyEnv)
)

// SecretBoxKeyEnv (con EnvPrefix) contiene la clave para los client_secret "enc:".
const SecretBoxKeyEnv = "SECRETBOX_KEY"

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
		Version  string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr              string `yaml:"addr"`
		ReadHeaderTimeout string `yaml:"read_header_timeout"`
		ShutdownTimeout   string `yaml:"shutdown_timeout"`
		// TrustedProxies (IPs o CIDRs) cuyo X-Forwarded-For se acepta para el rate limit.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Authorization struct {
		// Prefijo de GET {base_uri}/{configId}.
		BaseURI  string `yaml:"base_uri"`
		StateTTL string `yaml:"state_ttl"`
	} `yaml:"authorization"`

	Exchange struct {
		// http | oauth2
		Driver  string `yaml:"driver"`
		Timeout string `yaml:"timeout"`
	} `yaml:"exchange"`

	Cookie struct {
		Name     string `yaml:"name"`
		Domain   string `yaml:"domain"`
		Path     string `yaml:"path"`
		SameSite string `yaml:"samesite"`
		Secure   bool   `yaml:"secure"`
		Secret   string `yaml:"secret"`
	} `yaml:"cookie"`

	State struct {
		// memory | redis | postgres
		Store           string `yaml:"store"`
		CleanupInterval string `yaml:"cleanup_interval"`
		Redis           struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN         string `yaml:"dsn"`
			MaxConns    int32  `yaml:"max_conns"`
			AutoMigrate bool   `yaml:"auto_migrate"`
		} `yaml:"postgres"`
	} `yaml:"state"`

	// Rate limita GET {base_uri}/{configId} por IP.
	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		MaxRequests int    `yaml:"max_requests"`
		Window      string `yaml:"window"`
	} `yaml:"rate"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	// UserInfo activa el resolver de principal contra user_info_uri.
	UserInfo struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"user_info"`

	Clients []Client `yaml:"clients"`
}

// Client es una registración tal como aparece en el YAML.
type Client struct {
	ID string `yaml:"id"`
	// Provider (google | github) completa endpoints y scopes vacíos.
	Provider         string   `yaml:"provider"`
	ClientName       string   `yaml:"client_name"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	AuthorizationURI string   `yaml:"authorization_uri"`
	TokenURI         string   `yaml:"token_uri"`
	RedirectURI      string   `yaml:"redirect_uri"`
	UserInfoURI      string   `yaml:"user_info_uri"`
	Scopes           []string `yaml:"scopes"`
}

// Load lee el YAML en path, aplica defaults, variables de entorno y valida.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse hace lo mismo que Load sobre un documento ya leído.
func Parse(b []byte) (*Config, error) {
	var c Config
	// Los bools con default true se fijan antes del unmarshal.
	c.Metrics.Enabled = true
	c.Rate.Enabled = true
	c.State.Postgres.AutoMigrate = true
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.decryptSecrets(); err != nil {
		return nil, err
	}

	// Guardia: en prod la cookie siempre es Secure.
	if strings.EqualFold(c.App.Env, "prod") {
		c.Cookie.Secure = true
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout == "" {
		c.Server.ReadHeaderTimeout = "10s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Authorization.BaseURI == "" {
		c.Authorization.BaseURI = "/oauth2/authorize/code"
	}
	if c.Authorization.StateTTL == "" {
		c.Authorization.StateTTL = "10m"
	}
	if c.Exchange.Driver == "" {
		c.Exchange.Driver = "http"
	}
	if c.Exchange.Timeout == "" {
		c.Exchange.Timeout = "5s"
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = "oauth2_flow"
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = "/"
	}
	if c.Cookie.SameSite == "" {
		// Lax: el callback llega como navegación top-level desde otro sitio.
		c.Cookie.SameSite = "Lax"
	}
	if c.State.Store == "" {
		c.State.Store = "memory"
	}
	if c.State.CleanupInterval == "" {
		c.State.CleanupInterval = "1m"
	}
	if c.State.Redis.Prefix == "" {
		c.State.Redis.Prefix = "oauth2client"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 30
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// applyEnvOverrides: pisa el YAML con variables OAUTH2CLIENT_*.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}

	// FLOW
	if v, ok := getEnvStr("AUTHORIZATION_BASE_URI"); ok {
		c.Authorization.BaseURI = v
	}
	if v, ok := getEnvStr("STATE_TTL"); ok {
		c.Authorization.StateTTL = v
	}
	if v, ok := getEnvStr("EXCHANGE_DRIVER"); ok {
		c.Exchange.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("EXCHANGE_TIMEOUT"); ok {
		c.Exchange.Timeout = v
	}

	// COOKIE
	if v, ok := getEnvStr("COOKIE_SECRET"); ok {
		c.Cookie.Secret = v
	}
	if v, ok := getEnvStr("COOKIE_DOMAIN"); ok {
		c.Cookie.Domain = v
	}
	if v, ok := getEnvBool("COOKIE_SECURE"); ok {
		c.Cookie.Secure = v
	}

	// STATE STORE
	if v, ok := getEnvStr("STATE_STORE"); ok {
		c.State.Store = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.State.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.State.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.State.Redis.DB = v
	}
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.State.Postgres.DSN = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvBool("USER_INFO_ENABLED"); ok {
		c.UserInfo.Enabled = v
	}

	// CLIENTS: OAUTH2CLIENT_CLIENTS_<ID>_CLIENT_ID / _CLIENT_SECRET
	for i := range c.Clients {
		cl := &c.Clients[i]
		base := "CLIENTS_" + envKey(cl.ID) + "_"
		if v, ok := getEnvStr(base + "CLIENT_ID"); ok {
			cl.ClientID = v
		}
		if v, ok := getEnvStr(base + "CLIENT_SECRET"); ok {
			cl.ClientSecret = v
		}
	}
}

// decryptSecrets reemplaza los client_secret con prefijo "enc:" por su texto plano.
func (c *Config) decryptSecrets() error {
	var box *secretbox.Box
	for i := range c.Clients {
		cl := &c.Clients[i]
		if !secretbox.IsEncrypted(cl.ClientSecret) {
			continue
		}
		if box == nil {
			key, ok := getEnvStr(SecretBoxKeyEnv)
			if !ok {
				return ErrSecretBoxKey
			}
			b, err := secretbox.New(key)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			box = b
		}
		pt, err := box.Decrypt(cl.ClientSecret)
		if err != nil {
			return fmt.Errorf("%w: client %q: client_secret: %v", ErrInvalidConfig, cl.ID, err)
		}
		cl.ClientSecret = pt
	}
	return nil
}

// Validate chequea valores que el resto del wiring asume correctos.
func (c *Config) Validate() error {
	durations := map[string]string{
		"server.read_header_timeout": c.Server.ReadHeaderTimeout,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
		"authorization.state_ttl":    c.Authorization.StateTTL,
		"exchange.timeout":           c.Exchange.Timeout,
		"state.cleanup_interval":     c.State.CleanupInterval,
		"rate.window":                c.Rate.Window,
	}
	for k, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, k, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, k)
		}
	}

	if c.Rate.Enabled && c.Rate.MaxRequests <= 0 {
		return fmt.Errorf("%w: rate.max_requests must be positive", ErrInvalidConfig)
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Authorization.BaseURI, "/") {
		return fmt.Errorf("%w: authorization.base_uri must start with /", ErrInvalidConfig)
	}
	switch c.Exchange.Driver {
	case "http", "oauth2":
	default:
		return fmt.Errorf("%w: exchange.driver %q (http|oauth2)", ErrInvalidConfig, c.Exchange.Driver)
	}
	if len(c.Cookie.Secret) < minCookieSecret {
		return fmt.Errorf("%w: cookie.secret must be at least %d bytes", ErrInvalidConfig, minCookieSecret)
	}

	switch c.State.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.State.Redis.Addr) == "" {
			return fmt.Errorf("%w: state.redis.addr is required", ErrInvalidConfig)
		}
	case "postgres":
		if strings.TrimSpace(c.State.Postgres.DSN) == "" {
			return fmt.Errorf("%w: state.postgres.dsn is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: state.store %q (memory|redis|postgres)", ErrInvalidConfig, c.State.Store)
	}

	if len(c.Clients) == 0 {
		return ErrNoClients
	}
	if _, err := c.Registrations(); err != nil {
		return err
	}
	return nil
}

// Registrations convierte los clients del YAML en configuraciones validadas.
func (c *Config) Registrations() ([]clientconfig.Configuration, error) {
	out := make([]clientconfig.Configuration, 0, len(c.Clients))
	for _, cl := range c.Clients {
		p := clientconfig.Params{
			ID:               cl.ID,
			ClientName:       cl.ClientName,
			ClientID:         cl.ClientID,
			ClientSecret:     cl.ClientSecret,
			AuthorizationURI: cl.AuthorizationURI,
			TokenURI:         cl.TokenURI,
			RedirectURI:      cl.RedirectURI,
			UserInfoURI:      cl.UserInfoURI,
			Scopes:           cl.Scopes,
		}
		if cl.Provider != "" {
			if err := clientconfig.ApplyProvider(&p, cl.Provider); err != nil {
				return nil, fmt.Errorf("client %q: %w", cl.ID, err)
			}
		}
		cfg, err := clientconfig.New(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (c *Config) StateTTL() time.Duration          { return mustDuration(c.Authorization.StateTTL) }
func (c *Config) ExchangeTimeout() time.Duration   { return mustDuration(c.Exchange.Timeout) }
func (c *Config) CleanupInterval() time.Duration   { return mustDuration(c.State.CleanupInterval) }
func (c *Config) ReadHeaderTimeout() time.Duration { return mustDuration(c.Server.ReadHeaderTimeout) }
func (c *Config) ShutdownTimeout() time.Duration   { return mustDuration(c.Server.ShutdownTimeout) }
func (c *Config) RateWindow() time.Duration        { return mustDuration(c.Rate.Window) }

// mustDuration asume un valor ya validado.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// envKey normaliza un id de cliente a sufijo de variable: "my-app" => "MY_APP".
func envKey(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(id))
}

// TrustedProxyNets parsea server.trusted_proxies. Una IP suelta vale como /32 o /128.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range c.Server.TrustedProxies {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				return nil, fmt.Errorf("%w: server.trusted_proxies: %q", ErrInvalidConfig, v)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, fmt.Errorf("%w: server.trusted_proxies: %v", ErrInvalidConfig, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
