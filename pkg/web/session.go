package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cloudbro-kube-ai/helix-console/pkg/console"
	"github.com/cloudbro-kube-ai/helix-console/pkg/notify"
)

// sessionCookie names the browser session whose hub receives dialogs and snackbars.
const sessionCookie = "helix_console_session"

// sessionID returns the request's session ID. When the request has none (or
// a malformed one) a new ID is issued together with the cookie to set.
func sessionID(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value, nil
		}
	}
	id := notify.NewID()
	return id, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	}
}

// session returns the caller's hub, creating session and cookie on first use.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *notify.Hub) {
	id, cookie := sessionID(r)
	if cookie != nil {
		http.SetCookie(w, cookie)
	}
	return id, s.sessions.Acquire(id)
}

// existingSession returns the caller's hub without creating one.
func (s *Server) existingSession(r *http.Request) (string, *notify.Hub, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", nil, false
	}
	hub, ok := s.sessions.Get(c.Value)
	return c.Value, hub, ok
}

// notifier builds the helper service over a session hub.
func (s *Server) notifier(hub *notify.Hub) *notify.Helper {
	return notify.NewHelper(hub, hub,
		notify.WithSnackBarDuration(s.cfg.SnackBarDuration()),
		notify.WithSnackBarAction(s.cfg.Notifications.SnackBarAction),
	)
}

// actions binds the console actions to the caller's session.
func (s *Server) actions(w http.ResponseWriter, r *http.Request) (*console.Actions, console.Actor) {
	id, hub := s.session(w, r)
	actor := console.Actor{
		User:      requestUser(r),
		Source:    auditSource,
		ClientIP:  getClientIP(r),
		SessionID: id,
	}
	opts := []console.ActionOption{console.WithConfirmationTimeout(s.cfg.ConfirmationTimeout())}
	if s.audit != nil {
		opts = append(opts, console.WithAudit(s.audit))
	}
	return console.NewActions(s.backend, s.notifier(hub), opts...), actor
}
