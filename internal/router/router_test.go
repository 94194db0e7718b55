package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/event-ticketing/internal/config"
)

func newServer() *echo.Echo {
	e := echo.New()
	Register(e, Handlers{}, Options{
		JWTSecret: "router-test",
		Cache:     config.CacheConfig{Enabled: true},
		RateLimit: config.RateLimitConfig{Enabled: true},
	})
	return e
}

func TestRoutesAreRegistered(t *testing.T) {
	e := newServer()
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"GET /v1/events/:id/availability",
		"POST /v1/payments/payu/confirmation",
		"POST /v1/payments/payu/webhook",
		"POST /v1/auth/refresh-access",
		"GET /v1/me",
		"POST /v1/events/:id/tickets",
		"POST /v1/tickets/validate",
		"POST /v1/tickets/:id/pay",
		"DELETE /v1/events/:id",
		"PATCH /v1/admin/tickets/:id",
		"DELETE /v1/admin/users/:id/roles/:role",
	} {
		assert.True(t, got[want], want)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newServer()
	for _, target := range []struct{ method, path string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodPost, "/v1/events/1/tickets"},
		{http.MethodPost, "/v1/tickets/validate"},
		{http.MethodGet, "/v1/admin/users"},
		{http.MethodPost, "/v1/events"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(target.method, target.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target.path)
	}
}
