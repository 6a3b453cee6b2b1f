package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromFallsBackToSingleton(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	From(context.Background()).Info("hello")
	assert.Equal(t, 1, logs.Len())
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core).With(RequestID("r1")))

	From(ctx).Info("scoped", ConfigID("google"), StatePrefix("abcdefghijklmnop"))
	entries := logs.All()
	if assert.Len(t, entries, 1) {
		m := entries[0].ContextMap()
		assert.Equal(t, "r1", m["request_id"])
		assert.Equal(t, "google", m["config_id"])
		assert.Equal(t, "abcdefgh", m["state_prefix"])
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestBuild(t *testing.T) {
	assert.NotNil(t, build(Config{Env: "prod", Level: "warn", ServiceName: "svc"}))
	assert.NotNil(t, build(Config{Env: "dev"}))
}
