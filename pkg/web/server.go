// Package web serves the Helix console: HTML pages for the routing table,
// a JSON API, and a per-session WebSocket stream of dialogs and snackbars.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/utils/clock"

	"github.com/cloudbro-kube-ai/helix-console/pkg/config"
	"github.com/cloudbro-kube-ai/helix-console/pkg/console"
	"github.com/cloudbro-kube-ai/helix-console/pkg/db"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
	"github.com/cloudbro-kube-ai/helix-console/pkg/notify"
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
	"github.com/cloudbro-kube-ai/helix-console/pkg/ui"
)

//go:embed static/*
var staticFiles embed.FS

//go:embed templates/*.html
var templateFiles embed.FS

// VersionInfo holds build version information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Pinger reports whether the backend is reachable. *helix.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock driving snackbar timers.
func WithClock(clk clock.WithDelayedExecution) Option {
	return func(s *Server) { s.clock = clk }
}

// WithAuditFunc replaces db.RecordAudit as the audit sink for actions.
func WithAuditFunc(fn console.AuditFunc) Option {
	return func(s *Server) { s.audit = fn }
}

type Server struct {
	cfg         *config.Config
	backend     console.Backend
	router      *router.Router
	pages       *console.Pages
	ui          *ui.Module
	templates   *template.Template
	sessions    *notify.Sessions
	auth        *AuthManager
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	versionInfo *VersionInfo
	clock       clock.WithDelayedExecution
	audit       console.AuditFunc

	handler http.Handler
	server  *http.Server
}

// NewServer wires the console over backend.
func NewServer(cfg *config.Config, backend console.Backend, versionInfo *VersionInfo, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:         cfg,
		backend:     backend,
		router:      console.NewRouter(backend),
		pages:       console.NewPages(backend),
		versionInfo: versionInfo,
		auth:        NewAuthManager(cfg.Web.AdminUser, cfg.Web.AdminPasswordHash),
	}
	for _, opt := range opts {
		opt(s)
	}

	module, err := ui.NewModule()
	if err != nil {
		return nil, err
	}
	s.ui = module

	s.templates, err = template.New("pages").
		Funcs(module.FuncMap()).
		Funcs(pageFuncs).
		ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}

	s.sessions = notify.NewSessions(cfg.SessionTTL(), s.clock)
	if cfg.Web.RateLimit > 0 {
		s.rateLimiter = NewRateLimiter(cfg.Web.RateLimit, time.Minute)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Web.AllowedOrigins),
	}

	s.handler = s.routes()

	log.Infof("[web] console ready: helix=%s audit_db=%t auth=%t rate_limit=%d/min",
		cfg.Helix.Endpoint, db.DB != nil, s.auth.Enabled(), cfg.Web.RateLimit)
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// --- Public routes ---
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/navigate", s.handleNavigate)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	// Dialog and snackbar answers from the browser
	mux.HandleFunc("POST /api/dialogs/{id}", s.handleDialogClose)
	mux.HandleFunc("POST /api/snackbars/{id}/dismiss", s.handleSnackBarDismiss)

	// --- Admin routes (basic auth when configured) ---
	mux.HandleFunc("POST /api/actions/clusters", s.auth.RequireAdmin(s.handleCreateCluster))
	mux.HandleFunc("POST /api/actions/clusters/{name}/configs", s.auth.RequireAdmin(s.handleUpdateClusterConfig))
	mux.HandleFunc("POST /api/actions/clusters/{name}/{op}", s.auth.RequireAdmin(s.handleClusterAction))
	mux.HandleFunc("POST /api/actions/clusters/{name}/instances/{instance}/{op}", s.auth.RequireAdmin(s.handleInstanceAction))
	mux.HandleFunc("GET /api/audit", s.auth.RequireAdmin(s.handleAuditLogs))

	// Static assets
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Everything else is a console page
	mux.HandleFunc("GET /", s.handlePage)

	// Middleware chain: recovery -> request logging -> rate limiting -> auth -> body limit -> timeout -> security headers -> handler
	return recoveryMiddleware(
		requestLoggingMiddleware(
			RateLimitMiddleware(s.rateLimiter)(
				s.auth.Middleware(
					maxBodyMiddleware(1 << 20)(
						timeoutMiddleware(s.cfg.RequestTimeout())(
							securityHeadersMiddleware(mux),
						),
					),
				),
			),
		),
	)
}

// Handler returns the complete HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Web.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No ReadTimeout or WriteTimeout: the event stream and actions waiting
		// on confirmations are long lived. timeoutMiddleware bounds the rest.
		IdleTimeout: 120 * time.Second,
	}

	log.Infof("[web] listening on http://localhost:%d", s.cfg.Web.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down, dismissing every open dialog.
func (s *Server) Stop() error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.auth.Stop()
	s.sessions.Shutdown()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version := "dev"
	if s.versionInfo != nil && s.versionInfo.Version != "" {
		version = s.versionInfo.Version
	}

	status := map[string]interface{}{
		"status":       "ok",
		"timestamp":    time.Now(),
		"db_ready":     db.DB != nil,
		"auth_enabled": s.auth.Enabled(),
		"sessions":     s.sessions.Len(),
		"version":      version,
	}

	helixReady := true
	if p, ok := s.backend.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			helixReady = false
			status["status"] = "degraded"
			status["helix_error"] = err.Error()
		}
	}
	status["helix_ready"] = helixReady

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":    "dev",
		"build_time": "unknown",
		"git_commit": "unknown",
	}

	if s.versionInfo != nil {
		if s.versionInfo.Version != "" {
			info["version"] = s.versionInfo.Version
		}
		if s.versionInfo.BuildTime != "" {
			info["build_time"] = s.versionInfo.BuildTime
		}
		if s.versionInfo.GitCommit != "" {
			info["git_commit"] = s.versionInfo.GitCommit
		}
	}

	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
