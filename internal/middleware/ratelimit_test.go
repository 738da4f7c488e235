package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, clock := newTestLimiter()
	p := Policy{Limit: 5, Window: time.Minute}

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("key", p); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	clock.advance(20 * time.Second)
	ok, retry := rl.Allow("key", p)
	if ok {
		t.Error("6th request should be denied")
	}
	if retry != 40*time.Second {
		t.Errorf("retry = %v, want 40s", retry)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl, clock := newTestLimiter()
	p := Policy{Limit: 3, Window: 10 * time.Second}

	for i := 0; i < 3; i++ {
		rl.Allow("key", p)
	}
	if ok, _ := rl.Allow("key", p); ok {
		t.Error("should be blocked within window")
	}

	clock.advance(10 * time.Second)
	if ok, _ := rl.Allow("key", p); !ok {
		t.Error("should be allowed once the window resets")
	}
}

func TestRateLimiterKeysIndependent(t *testing.T) {
	rl, _ := newTestLimiter()
	p := Policy{Limit: 1, Window: time.Minute}

	rl.Allow("a", p)
	if ok, _ := rl.Allow("a", p); ok {
		t.Error("second attempt on a should be denied")
	}
	if ok, _ := rl.Allow("b", p); !ok {
		t.Error("b has its own budget")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow("expired", Policy{Limit: 5, Window: time.Second})
	rl.Allow("active", Policy{Limit: 5, Window: time.Minute})
	clock.advance(2 * time.Second)

	if removed := rl.Cleanup(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.windows["expired"]; ok {
		t.Error("expired window should have been cleaned up")
	}
	if _, ok := rl.windows["active"]; !ok {
		t.Error("active window should still exist")
	}
}

func TestPolicyOrDefault(t *testing.T) {
	got := Policy{}.OrDefault(DefaultLoginPolicy)
	if got != DefaultLoginPolicy {
		t.Errorf("zero policy = %+v, want default", got)
	}
	got = Policy{Limit: 3}.OrDefault(DefaultLoginPolicy)
	if got.Limit != 3 || got.Window != DefaultLoginPolicy.Window {
		t.Errorf("partial policy = %+v", got)
	}
}

func TestAccountLimiter(t *testing.T) {
	rl, _ := newTestLimiter()
	al := NewAccountLimiter(rl, Policy{Limit: 2, Window: time.Minute})

	al.Allow("parent", "mom")
	al.Allow("parent", " Mom ")
	if ok, retry := al.Allow("parent", "MOM"); ok || retry <= 0 {
		t.Errorf("third attempt on mom = %v, %v; want denied with a retry", ok, retry)
	}
	if ok, _ := al.Allow("child", "mom"); !ok {
		t.Error("a child account with the same name has its own budget")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter()
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc, Policy{Limit: 2, Window: time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First 2 requests should pass
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// 3rd request should be rate limited
	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}

func TestTooManyRequestsRoundsUp(t *testing.T) {
	rec := httptest.NewRecorder()
	TooManyRequests(rec, 1500*time.Millisecond)
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	rec = httptest.NewRecorder()
	TooManyRequests(rec, 0)
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "2.2.2.2, 10.0.0.1"}, "3.3.3.3:1", "2.2.2.2"},
		{"remote addr", nil, "3.3.3.3:4567", "3.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
