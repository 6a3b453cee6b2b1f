// Package cache provee un key/value con TTL sobre dos backends:
//
//   - memory: go-cache in-process (un solo nodo, desarrollo/testing)
//   - redis: go-redis (varias réplicas detrás de un balanceador)
//
// Take es la única operación compuesta; ambos backends la implementan de
// forma atómica.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Set guarda un valor. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Take obtiene y elimina una key en un solo paso. Entre llamadas
	// concurrentes sobre la misma key, a lo sumo una recibe el valor.
	// Retorna ErrNotFound si no existe o expiró.
	Take(ctx context.Context, key string) (string, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string // host:port, solo redis
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// CleanupInterval es la frecuencia del janitor del backend memory.
	CleanupInterval time.Duration
}

// ErrNotFound indica que la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

// ErrUnknownDriver se retorna para drivers no soportados.
var ErrUnknownDriver = errors.New("cache: unknown driver")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente de cache según la configuración.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.CleanupInterval), nil
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
