package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndReset(t *testing.T) {
	l := New(2, time.Minute)

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("k") {
		t.Error("third request should be limited")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}

	l.Reset("k")
	if !l.Allow("k") {
		t.Error("request after Reset should be allowed")
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	now := time.Now()
	l := New(1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second request in window should be limited")
	}

	now = now.Add(2 * time.Minute)
	if !l.Allow("k") {
		t.Error("request in a new window should be allowed")
	}
}

func TestLimiter_Sweep(t *testing.T) {
	now := time.Now()
	l := New(1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(time.Hour)

	if got := l.Sweep(); got != 2 {
		t.Errorf("Sweep() = %d, want 2", got)
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	l := New(1, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("POST", "/signup", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:80", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.1:80", "5.6.7.8"},
		{"remote", nil, "9.9.9.9:1234", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_PerEmail(t *testing.T) {
	ll := NewLoginLimiter()
	req := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 5; i++ {
		if ok, _ := ll.Check(req, "a@x.com"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if ok, reason := ll.Check(req, "A@X.com "); ok || reason == "" {
		t.Error("sixth attempt for the same email should be limited")
	}

	ll.ResetEmail("a@x.com")
	if ok, _ := ll.Check(req, "a@x.com"); !ok {
		t.Error("attempt after ResetEmail should be allowed")
	}
}
