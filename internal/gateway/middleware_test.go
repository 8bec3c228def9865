package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %f, want 5", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 10 {
		t.Errorf("Burst = %d, want 10", cfg.Burst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestRateLimiterStore_GetLimiter(t *testing.T) {
	store := newRateLimiterStore(RateLimiterConfig{RequestsPerSecond: 10, Burst: 20})

	limiter1 := store.getLimiter("10.0.0.1")
	if limiter1 == nil {
		t.Fatal("expected limiter to be created")
	}
	if limiter2 := store.getLimiter("10.0.0.1"); limiter1 != limiter2 {
		t.Error("expected same limiter to be returned")
	}
	if limiter3 := store.getLimiter("10.0.0.2"); limiter1 == limiter3 {
		t.Error("expected different limiter for different key")
	}
}

func TestRateLimiterStore_EvictsIdle(t *testing.T) {
	store := newRateLimiterStore(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Minute})
	now := time.Now()
	store.now = func() time.Time { return now }

	store.getLimiter("idle")
	now = now.Add(30 * time.Second)
	store.getLimiter("active")
	now = now.Add(45 * time.Second)
	store.getLimiter("active")

	if store.size() != 1 {
		t.Errorf("expected idle limiter evicted, have %d limiters", store.size())
	}
}

func TestRateLimiter_AllowsRequests(t *testing.T) {
	e := echo.New()
	handler := RateLimiter(RateLimiterConfig{RequestsPerSecond: 100, Burst: 100})(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_BlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	handler := RateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1})(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		err := handler(e.NewContext(req, httptest.NewRecorder()))
		if i == 0 {
			if err != nil {
				t.Errorf("first request should succeed, got error: %v", err)
			}
			continue
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("expected echo.HTTPError, got %T", err)
		}
		if he.Code != http.StatusTooManyRequests {
			t.Errorf("request %d status = %d, want 429", i+1, he.Code)
		}
	}
}

func TestRateLimiter_PerClientIP(t *testing.T) {
	e := echo.New()
	handler := RateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Errorf("first request from %s should succeed: %v", ip, err)
		}
	}
}
