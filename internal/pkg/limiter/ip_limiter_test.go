package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterBurstPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, 0.001, 2)

	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "10.0.0.1:5000"
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "10.0.0.2:5000"

	if !l.AllowRequest(a) || !l.AllowRequest(a) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.AllowRequest(a) {
		t.Fatal("third request should be limited")
	}
	if !l.AllowRequest(b) {
		t.Fatal("other IPs have their own bucket")
	}
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
}

func TestSweepDropsRefilledLimiters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, 1, 1)
	l.GetLimiter("10.0.0.1").Allow()
	l.GetLimiter("10.0.0.2")

	if removed := l.sweep(time.Now()); removed != 1 {
		t.Fatalf("removed = %d, want only the untouched limiter", removed)
	}
	if removed := l.sweep(time.Now().Add(time.Minute)); removed != 1 {
		t.Fatalf("removed = %d, want the refilled limiter", removed)
	}
	if l.Len() != 0 {
		t.Fatalf("Len = %d, want 0", l.Len())
	}
}

func TestMiddlewareRespondsTooManyRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, 0.001, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "192.0.2.7:1234"
		h.ServeHTTP(rec, r)
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	r.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientIP(r); got != "2001:db8::1" {
		t.Fatalf("ClientIP = %q", got)
	}

	r.RemoteAddr = "203.0.113.9"
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Fatalf("ClientIP = %q", got)
	}

	r.RemoteAddr = ""
	if got := ClientIP(r); got != "unknown_ip" {
		t.Fatalf("ClientIP = %q", got)
	}
}
