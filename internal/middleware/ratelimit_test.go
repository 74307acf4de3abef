package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupRateLimit(t *testing.T, limit int, window time.Duration) (http.Handler, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	handler := RateLimitMiddleware(client, RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            window,
		KeyPrefix:         "ratelimit:test",
	}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	return handler, mr
}

func TestRateLimit_AllowsRequestsUnderLimit(t *testing.T) {
	handler, _ := setupRateLimit(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/products", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "5" {
			t.Errorf("request %d: missing X-RateLimit-Limit header", i+1)
		}
	}
}

func TestRateLimit_RejectsRequestsOverLimit(t *testing.T) {
	handler, _ := setupRateLimit(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/products", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest("GET", "/api/products", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining: 0")
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_TracksClientsIndependently(t *testing.T) {
	handler, _ := setupRateLimit(t, 1, time.Minute)

	first := httptest.NewRequest("GET", "/api/products", nil)
	first.RemoteAddr = "10.0.0.3:1234"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	// A different client has its own counter.
	second := httptest.NewRequest("GET", "/api/products", nil)
	second.RemoteAddr = "10.0.0.4:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, second)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for second client, got %d", w.Code)
	}
}

func TestRateLimit_WindowResets(t *testing.T) {
	handler, mr := setupRateLimit(t, 1, time.Minute)

	req := httptest.NewRequest("GET", "/api/products", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 inside window, got %d", w.Code)
	}

	mr.FastForward(2 * time.Minute)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window reset, got %d", w.Code)
	}
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	handler, mr := setupRateLimit(t, 1, time.Minute)
	mr.Close()

	req := httptest.NewRequest("GET", "/api/products", nil)
	req.RemoteAddr = "10.0.0.6:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200 when redis is unavailable, got %d", w.Code)
	}
}
