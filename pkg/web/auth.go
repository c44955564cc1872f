package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

const (
	// headerUsername carries the authenticated user to handlers. Client
	// supplied values are always stripped first.
	headerUsername = "X-Username"
	anonymousUser  = "anonymous"
	auditSource    = "web"
	authRealm      = `Basic realm="helix-console", charset="UTF-8"`
)

// AuthManager guards mutating endpoints with HTTP basic auth against a
// single bcrypt-hashed admin account. With no hash configured, auth is off.
type AuthManager struct {
	user     string
	hash     []byte
	failures *RateLimiter
}

// NewAuthManager creates an auth manager. An empty passwordHash disables auth.
func NewAuthManager(user, passwordHash string) *AuthManager {
	am := &AuthManager{user: user}
	if passwordHash != "" {
		am.hash = []byte(passwordHash)
		am.failures = NewRateLimiter(10, time.Minute)
	}
	return am
}

// Enabled reports whether credentials are required for changes.
func (am *AuthManager) Enabled() bool {
	return len(am.hash) > 0
}

// Stop releases the failure limiter.
func (am *AuthManager) Stop() {
	if am.failures != nil {
		am.failures.Stop()
	}
}

// HashPassword creates a bcrypt hash suitable for web.admin_password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword verifies a password against the configured bcrypt hash
func (am *AuthManager) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(am.hash, []byte(password)) == nil
}

// authenticate returns the user named by valid basic auth credentials.
// present is false when the request carries no credentials at all.
func (am *AuthManager) authenticate(r *http.Request) (user string, present, ok bool) {
	u, p, present := r.BasicAuth()
	if !present || !am.Enabled() {
		return "", present, false
	}
	userOK := subtle.ConstantTimeCompare([]byte(u), []byte(am.user)) == 1
	passOK := am.checkPassword(p)
	if !userOK || !passOK {
		return "", true, false
	}
	return u, true, true
}

// Middleware resolves the caller's identity for every request. Bad
// credentials are counted per client; too many failures are answered 429.
func (am *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(headerUsername)

		user, present, ok := am.authenticate(r)
		switch {
		case ok:
			r.Header.Set(headerUsername, user)
		case present && am.Enabled():
			ip := getClientIP(r)
			if !am.failures.Allow(ip) {
				log.Warnf("[auth] too many failed logins from %s", ip)
				w.Header().Set("Retry-After", formatRetryAfter(am.failures.GetRetryAfter(ip)))
				WriteError(w, NewAPIErrorWithSuggestion(ErrCodeRateLimited, "Too many failed login attempts",
					"Wait a minute before trying again."))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects unauthenticated callers when auth is enabled.
func (am *AuthManager) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if am.Enabled() && r.Header.Get(headerUsername) == "" {
			w.Header().Set("WWW-Authenticate", authRealm)
			WriteError(w, NewAPIError(ErrCodeUnauthorized, "Admin credentials required"))
			return
		}
		next(w, r)
	}
}

// requestUser returns the authenticated user or "anonymous".
func requestUser(r *http.Request) string {
	if u := r.Header.Get(headerUsername); u != "" {
		return u
	}
	return anonymousUser
}
