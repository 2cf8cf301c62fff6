package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _, _ := l.Allow(ctx, "1.2.3.4"); !ok {
			t.Fatalf("hit %d rejected", i+1)
		}
	}
	ok, retry, err := l.Allow(ctx, "1.2.3.4")
	if err != nil || ok {
		t.Fatalf("third hit = %v, %v; want rejected", ok, err)
	}
	if retry != time.Minute {
		t.Errorf("retryAfter = %v, want 1m", retry)
	}

	if ok, _, _ := l.Allow(ctx, "5.6.7.8"); !ok {
		t.Error("other key shares the counter")
	}

	now = now.Add(time.Minute)
	if ok, _, _ := l.Allow(ctx, "1.2.3.4"); !ok {
		t.Error("window did not reset")
	}
	if len(l.windows) != 1 {
		t.Errorf("expired windows kept: %d", len(l.windows))
	}
}

func TestMiddleware(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	h := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/banned-names/check", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusNoContent {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, context.DeadlineExceeded
}

func TestMiddlewareFailsOpen(t *testing.T) {
	h := Middleware(brokenLimiter{}, func(*http.Request) string { return "k" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}
