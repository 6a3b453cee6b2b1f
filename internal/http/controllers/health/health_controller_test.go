package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthz(t *testing.T) {
	ok := NewHealthController(func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	ok.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","store":"ok"}`, rec.Body.String())

	down := NewHealthController(func(context.Context) error { return errors.New("dial tcp: refused") })
	rec = httptest.NewRecorder()
	down.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"SERVICE_UNAVAILABLE"`)
	assert.Contains(t, rec.Body.String(), `"detail":"state_store"`)
	assert.NotContains(t, rec.Body.String(), "refused")

	rec = httptest.NewRecorder()
	NewHealthController(nil).Healthz(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
