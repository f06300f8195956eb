package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/handler"
)

// RateLimiter is an in-memory fixed-window counter keyed by caller.
// State is per process; a restart forgets every window.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	hits    int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		logger:  logger,
		buckets: make(map[string]*bucket),
	}
}

// Take counts one hit against key. When the window is full it returns
// false and how long until the window resets.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{hits: 1, resetAt: now.Add(rl.window)}
		return true, 0
	}
	if b.hits >= rl.limit {
		return false, b.resetAt.Sub(now)
	}
	b.hits++
	return true, 0
}

// sweep drops expired buckets at most once per window. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for key, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

// KeyFunc picks the bucket a request counts against.
type KeyFunc func(r *http.Request) string

func KeyByIP(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// KeyByUserOrIP buckets signed-in callers by user id so a shared NAT does
// not pool their limits. Must run after WithUser.
func KeyByUserOrIP(r *http.Request) string {
	if id, ok := auth.UserID(r.Context()); ok {
		return "user:" + id.String()
	}
	return KeyByIP(r)
}

type RateLimitMiddleware struct {
	limiter *RateLimiter
	key     KeyFunc
	logger  *slog.Logger
}

// NewRateLimitMiddleware wraps limiter. A nil key buckets by client IP.
func NewRateLimitMiddleware(limiter *RateLimiter, key KeyFunc, logger *slog.Logger) *RateLimitMiddleware {
	if key == nil {
		key = KeyByIP
	}
	return &RateLimitMiddleware{limiter: limiter, key: key, logger: logger}
}

// Limit answers 429 with Retry-After once the caller's window is full.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)
		allowed, wait := m.limiter.Take(key)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path)
		seconds := int((wait + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
		handler.MessageResponse(w, http.StatusTooManyRequests, "rate_limited")
	})
}

// getClientIP prefers proxy headers. The first X-Forwarded-For entry is
// the original client.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
