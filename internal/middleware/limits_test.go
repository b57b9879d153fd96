package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
)

func TestRateLimiter(t *testing.T) {
	events, sink := newEvents()
	limiter, err := NewRateLimiter(0.001, 2, events)
	require.NoError(t, err)

	var called bool
	handler := limiter.Middleware(okHandler(&called))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	// Other clients have their own bucket.
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1000"))

	assert.Contains(t, sink.Types(), audit.EventRateLimited)
}

func TestNewRateLimiter_Invalid(t *testing.T) {
	_, err := NewRateLimiter(0, 10, nil)
	assert.Error(t, err)
}

func TestMaintenance(t *testing.T) {
	m := NewMaintenance(true, "/healthz")
	var called bool
	handler := m.Middleware(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "maintenance_mode", decodeError(t, rec).ErrorType)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	m.Set(false)
	assert.False(t, m.Enabled())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMaintenance_BrowserRedirectsOnce(t *testing.T) {
	m := NewMaintenance(true, "/healthz")
	var called bool
	handler := m.Middleware(okHandler(&called))

	browse := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Accept", "text/html")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := browse("/dashboard")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/maintenance", rec.Header().Get("Location"))

	rec = browse("/maintenance")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, "maintenance_mode", decodeError(t, rec).ErrorType)
	assert.False(t, called)
}

func TestRateLimiter_ErrorPageIsNotRedirected(t *testing.T) {
	limiter, err := NewRateLimiter(0.001, 1, nil)
	require.NoError(t, err)
	var called bool
	handler := limiter.Middleware(okHandler(&called))

	browse := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Accept", "text/html")
		req.RemoteAddr = "10.0.0.9:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, browse("/dashboard").Code)
	rec := browse("/dashboard")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/error?type=rate_limited", rec.Header().Get("Location"))

	rec = browse("/error?type=rate_limited")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).ErrorType)
}
