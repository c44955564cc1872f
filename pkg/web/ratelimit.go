package web

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter implements a fixed-window token bucket per client
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int           // requests per window
	window   time.Duration // time window
	cleanup  time.Duration // cleanup interval
	done     chan struct{}
	stopOnce sync.Once
}

// visitor tracks rate limit state for a single client
type visitor struct {
	tokens    int
	lastReset time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		cleanup:  5 * time.Minute,
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop signals the cleanup goroutine to exit. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Allow checks if a request from the given identifier should be allowed
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[identifier]
	if !exists {
		v = &visitor{
			tokens:    rl.limit,
			lastReset: time.Now(),
		}
		rl.visitors[identifier] = v
	}
	rl.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	if now.Sub(v.lastReset) > rl.window {
		v.tokens = rl.limit
		v.lastReset = now
	}

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

// GetRetryAfter returns the time until the rate limit resets
func (rl *RateLimiter) GetRetryAfter(identifier string) time.Duration {
	rl.mu.Lock()
	v, exists := rl.visitors[identifier]
	rl.mu.Unlock()

	if !exists {
		return 0
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	remaining := rl.window - time.Since(v.lastReset)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanupLoop periodically removes stale visitor entries
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for id, v := range rl.visitors {
				v.mu.Lock()
				if now.Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, id)
				}
				v.mu.Unlock()
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// RateLimitMiddleware limits /api/ requests per client. Pages and static
// assets are not limited; the event stream counts once per connection.
func RateLimitMiddleware(apiLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiLimiter == nil || !isAPIEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			identifier := getClientIdentifier(r)
			if !apiLimiter.Allow(identifier) {
				retryAfter := apiLimiter.GetRetryAfter(identifier)
				w.Header().Set("Retry-After", formatRetryAfter(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(apiLimiter.limit))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))

				WriteError(w, NewAPIErrorWithSuggestion(
					ErrCodeRateLimited,
					"Too many requests",
					"You have exceeded the rate limit for API endpoints. Please wait before trying again.",
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIdentifier returns the rate limit key. Limiting runs before
// authentication, so only the client address is known.
func getClientIdentifier(r *http.Request) string {
	return getClientIP(r)
}

// getClientIP extracts the client IP from the request.
// X-Forwarded-For and X-Real-IP can be spoofed; use the result for logging
// and rate limiting only.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if colonIdx := strings.LastIndex(ip, ":"); colonIdx != -1 {
		ip = ip[:colonIdx]
	}
	return ip
}

func isAPIEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/") && path != "/api/health"
}

// formatRetryAfter formats a duration in whole seconds, at least 1
func formatRetryAfter(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
