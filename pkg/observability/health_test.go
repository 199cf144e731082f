package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecker(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("healthy", func(t *testing.T) {
		status := observability.NewHealthChecker().Register("postgres", ok).Register("redis", ok).Check(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "healthy", status.Checks["redis"])
	})

	t.Run("one_dependency_down", func(t *testing.T) {
		status := observability.NewHealthChecker().Register("postgres", ok).Register("redis", down).Check(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "unhealthy: connection refused", status.Checks["redis"])
	})

	t.Run("nil_is_not_configured", func(t *testing.T) {
		status := observability.NewHealthChecker().Register("redis", nil).Check(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "not configured", status.Checks["redis"])
	})
}

func TestMetricsServer_Routes(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("down") })
	srv := observability.NewMetricsServer(":0", observability.NewHealthChecker().Register("postgres", down))

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body observability.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	observability.NewMetricsServer(":0", nil).Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, "ready", rec.Body.String())
}

func TestHTTPMiddleware_PassesStatusThrough(t *testing.T) {
	h := observability.HTTPMiddleware("/webhooks", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/m/c", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
