package web

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/cloudbro-kube-ai/helix-console/pkg/db"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

// recoveryMiddleware wraps a handler to catch and report panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("PANIC in HTTP handler: %v\nPath: %s %s\n%s", err, r.Method, r.URL.Path, debug.Stack())

				if db.DB != nil {
					username := r.Header.Get(headerUsername)
					if username == "" {
						username = anonymousUser
					}
					_ = db.RecordAudit(db.AuditEntry{
						User:       username,
						Action:     "http_panic",
						Resource:   r.URL.Path,
						Details:    fmt.Sprintf("Panic recovered: %v", err),
						ActionType: db.ActionTypeMutation,
						Source:     auditSource,
						ClientIP:   getClientIP(r),
						ErrorMsg:   fmt.Sprint(err),
					})
				}

				WriteError(w, NewAPIError(ErrCodeInternalError, "An unexpected error occurred"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLoggingMiddleware logs method, path, status and duration
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if r.URL.Path == "/api/health" || strings.HasPrefix(r.URL.Path, "/static/") {
			return
		}
		username := r.Header.Get(headerUsername)
		if username == "" {
			username = anonymousUser
		}
		log.Infof("%s %s - %d (%s) - User: %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start), username)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker so WebSocket upgrades work through the logging middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

// doneWriter wraps http.ResponseWriter to prevent writes after timeout.
// Handlers set headers on a private map that is copied to the real writer
// only while the request is still live.
type doneWriter struct {
	http.ResponseWriter
	mu         sync.Mutex
	header     http.Header
	headerSent bool
	timedOut   bool
}

func newDoneWriter(w http.ResponseWriter) *doneWriter {
	return &doneWriter{ResponseWriter: w, header: make(http.Header)}
}

func (dw *doneWriter) Header() http.Header { return dw.header }

// sendHeaderLocked copies the buffered headers and writes the status. dw.mu must be held.
func (dw *doneWriter) sendHeaderLocked(code int) {
	dst := dw.ResponseWriter.Header()
	for k, vv := range dw.header {
		dst[k] = vv
	}
	dw.headerSent = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *doneWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.headerSent || dw.timedOut {
		return
	}
	dw.sendHeaderLocked(code)
}

func (dw *doneWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !dw.headerSent {
		dw.sendHeaderLocked(http.StatusOK)
	}
	return dw.ResponseWriter.Write(b)
}

// skipsTimeout reports requests that legitimately outlive the request
// timeout: the event stream and actions waiting on a confirmation dialog.
func skipsTimeout(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket" ||
		r.URL.Path == "/api/events" ||
		strings.HasPrefix(r.URL.Path, "/api/actions/")
}

// timeoutMiddleware bounds ordinary requests
func timeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipsTimeout(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := newDoneWriter(w)
			done := make(chan struct{})

			go func() {
				next.ServeHTTP(dw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				dw.mu.Lock()
				dw.timedOut = true
				headerSent := dw.headerSent
				dw.mu.Unlock()
				if !headerSent && ctx.Err() == context.DeadlineExceeded {
					WriteError(w, NewAPIError(ErrCodeTimeout, "Request timed out"))
				}
			}
		})
	}
}

// maxBodyMiddleware limits request body size
func maxBodyMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength != 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// securityHeadersMiddleware adds security headers to all responses
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"connect-src 'self' ws: wss:; "+
				"frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
