package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigrowth/internal/types"
)

func newTestServerForRoutes(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(testConfig(), testLogger())
	require.NoError(t, err)
	return srv
}

func TestMountRoutes_HealthEndpoint(t *testing.T) {
	srv := newTestServerForRoutes(t)
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMountRoutes_RequestIDGenerated(t *testing.T) {
	srv := newTestServerForRoutes(t)
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Len(t, rec.Header().Get(RequestIDHeader), 36, "expected a UUID request id")
}

func TestMountRoutes_RequestIDPropagated(t *testing.T) {
	srv := newTestServerForRoutes(t)
	var seen string
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
			seen = types.GetRequestID(r.Context())
		})
	})
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", seen)
	assert.Equal(t, "req-abc", rec.Header().Get(RequestIDHeader))
}

func TestMountRoutes_PublicAndMetrics(t *testing.T) {
	srv := newTestServerForRoutes(t)
	metrics := NewPrometheusMetrics()
	srv.Metrics = metrics
	srv.MetricsHandler = metrics.Handler()
	srv.PublicRouteRegistrars = append(srv.PublicRouteRegistrars, func(r chi.Router) {
		r.Post("/webhooks/yampi", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/yampi", strings.NewReader("{}")))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{code="202",method="POST",route="/webhooks/yampi"} 1`)
}

func TestMountRoutes_LimitedGroupThrottles(t *testing.T) {
	srv := newTestServerForRoutes(t)
	srv.LimitedRouteRegistrars = append(srv.LimitedRouteRegistrars, func(r chi.Router) {
		r.Post("/payment/process", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/plans", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	srv.MountRoutes()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/payment/process", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes, "burst of 2 then throttled")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "unlimited routes are not throttled")
}

func TestMountRoutes_CORSPreflight(t *testing.T) {
	srv := newTestServerForRoutes(t)
	srv.LimitedRouteRegistrars = append(srv.LimitedRouteRegistrars, func(r chi.Router) {
		r.Post("/checkout/create", func(w http.ResponseWriter, r *http.Request) {})
	})
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodOptions, "/v1/checkout/create", nil)
	req.Header.Set("Origin", "https://loja.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://loja.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMountRoutes_CORSRejectsUnknownOrigin(t *testing.T) {
	srv := newTestServerForRoutes(t)
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := ContextTimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
		<-r.Context().Done()
		assert.ErrorIs(t, r.Context().Err(), context.DeadlineExceeded)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, ok)
	assert.False(t, deadline.IsZero())
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	h := RateLimitMiddleware(testLogger(), 0, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitMiddleware_RetryAfter(t *testing.T) {
	h := RateLimitMiddleware(testLogger(), 0.5, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeRateLimit))
}
