package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field es un alias de zap.Field para no importar zap en cada paquete.
type Field = zap.Field

// HTTP

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field       { return zap.String("user_agent", v) }

// Flujo OAuth2

// ConfigID es el identificador de la client configuration.
func ConfigID(v string) zap.Field { return zap.String("config_id", v) }

// ClientID del registro OAuth (no es secreto).
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// Outcome es el core.Kind del resultado.
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// StatePrefix loguea solo los primeros 8 caracteres del state.
func StatePrefix(v string) zap.Field {
	if len(v) > 8 {
		v = v[:8]
	}
	return zap.String("state_prefix", v)
}

// RemoteError es el código "error" devuelto por el authorization server.
func RemoteError(v string) zap.Field { return zap.String("remote_error", v) }

// TokenType del access token obtenido.
func TokenType(v string) zap.Field { return zap.String("token_type", v) }

// Sistema

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }

// Layer: handler, service, store.
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field  { return zap.Error(err) }

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
