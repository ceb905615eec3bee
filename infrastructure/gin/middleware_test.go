package gin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infragin "github.com/Meltveit/qrydex/infrastructure/gin"
	"github.com/Meltveit/qrydex/infrastructure/logger"
)

func newTestRouter(t *testing.T, checks map[string]infragin.HealthChecker) *ginpkg.Engine {
	t.Helper()
	srv := infragin.NewServer(&infragin.Config{ServiceName: "qrydex", CORS: infragin.CORSConfig{Enabled: true}}, logger.NewNop(), func(r *ginpkg.Engine) {
		infragin.RegisterHealthRoutes(r, infragin.HealthOptions{ServiceName: "qrydex", Checks: checks})
		r.GET("/test", func(c *ginpkg.Context) {
			c.String(http.StatusOK, "ok")
		})
		r.GET("/panic", func(*ginpkg.Context) {
			panic("boom")
		})
	})
	return srv.Router()
}

func TestRequestIDLoggerMiddleware_GeneratesID(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	// uuid without dashes
	assert.Len(t, w.Header().Get("X-Request-ID"), 32)
}

func TestRequestIDLoggerMiddleware_PreservesExistingID(t *testing.T) {
	t.Parallel()

	const inboundID = "trace-from-upstream-abc123"

	router := ginpkg.New()
	router.Use(infragin.RequestIDLoggerMiddleware(logger.NewNop()))

	var gotID string
	router.GET("/test", func(c *ginpkg.Context) {
		gotID = c.GetString("request_id")
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("X-Request-ID", inboundID)
	router.ServeHTTP(w, req)

	assert.Equal(t, inboundID, w.Header().Get("X-Request-ID"))
	assert.Equal(t, inboundID, gotID)
}

func TestRecoveryMiddleware_Answers500(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/test", http.NoBody)
	req.Header.Set("Origin", "https://app.example.no")
	newTestRouter(t, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSMiddleware_DisabledSetsNoHeaders(t *testing.T) {
	t.Parallel()

	router := ginpkg.New()
	router.Use(infragin.CORSMiddleware(infragin.CORSConfig{Enabled: false}))
	router.GET("/test", func(c *ginpkg.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Origin", "https://app.example.no")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth_AggregatesChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]infragin.HealthChecker
		wantCode   int
		wantStatus infragin.HealthStatus
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: infragin.HealthStatusHealthy,
		},
		{
			name: "degraded search",
			checks: map[string]infragin.HealthChecker{
				"elasticsearch": infragin.PingChecker("elasticsearch", infragin.HealthStatusDegraded, func(context.Context) error {
					return errors.New("connection refused")
				}),
			},
			wantCode:   http.StatusOK,
			wantStatus: infragin.HealthStatusDegraded,
		},
		{
			name: "database down",
			checks: map[string]infragin.HealthChecker{
				"database": infragin.PingChecker("database", infragin.HealthStatusUnhealthy, func(context.Context) error {
					return errors.New("connection refused")
				}),
				"redis": infragin.PingChecker("redis", infragin.HealthStatusDegraded, func(context.Context) error {
					return nil
				}),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: infragin.HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			newTestRouter(t, tt.checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			require.Equal(t, tt.wantCode, w.Code)

			var body infragin.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "qrydex", body.Service)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}
