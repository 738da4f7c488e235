package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Policy is a fixed-window budget: at most Limit attempts per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultLoginPolicy applies when no login budget is configured.
var DefaultLoginPolicy = Policy{Limit: 10, Window: time.Minute}

// OrDefault fills zero fields from def.
func (p Policy) OrDefault(def Policy) Policy {
	if p.Limit <= 0 {
		p.Limit = def.Limit
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	return p
}

type window struct {
	attempts int
	resetAt  time.Time
}

// RateLimiter counts attempts per key in fixed windows. Keys are namespaced
// by the caller ("ip:", "login:") so one limiter serves several policies.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records an attempt for key. When the budget is spent it reports
// false and how long until the window resets.
func (rl *RateLimiter) Allow(key string, p Policy) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &window{attempts: 1, resetAt: now.Add(p.Window)}
		return true, 0
	}
	w.attempts++
	if w.attempts <= p.Limit {
		return true, 0
	}
	return false, w.resetAt.Sub(now)
}

// Cleanup drops windows that have reset and reports how many went.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// RateLimit returns middleware that limits requests by the key keyFunc
// derives from them.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, retry := limiter.Allow(keyFunc(r), p); !ok {
				TooManyRequests(w, retry)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TooManyRequests writes a 429 with Retry-After rounded up to whole seconds.
func TooManyRequests(w http.ResponseWriter, retry time.Duration) {
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "too many requests")
}

// AccountLimiter budgets login attempts per account, so rotating client IPs
// does not buy extra password guesses against one username.
type AccountLimiter struct {
	limiter *RateLimiter
	policy  Policy
}

func NewAccountLimiter(limiter *RateLimiter, p Policy) *AccountLimiter {
	return &AccountLimiter{limiter: limiter, policy: p}
}

// Allow records a login attempt for role/username. Usernames compare
// case-insensitively.
func (a *AccountLimiter) Allow(role, username string) (bool, time.Duration) {
	key := "login:" + role + ":" + strings.ToLower(strings.TrimSpace(username))
	return a.limiter.Allow(key, a.policy)
}
