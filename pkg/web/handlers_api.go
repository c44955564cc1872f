package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cloudbro-kube-ai/helix-console/pkg/db"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
)

// ActivationJSON describes one activated level of a navigation.
type ActivationJSON struct {
	Component string            `json:"component,omitempty"`
	URL       string            `json:"url"`
	Params    map[string]string `json:"params,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
}

// NavigationJSON is the body of GET /api/navigate.
type NavigationJSON struct {
	URL        string           `json:"url"`
	Href       string           `json:"href"`
	Redirected []string         `json:"redirected,omitempty"`
	Components []string         `json:"components"`
	Chain      []ActivationJSON `json:"chain"`
}

func navigationJSON(nav *router.Navigation) NavigationJSON {
	out := NavigationJSON{
		URL:        nav.URL,
		Href:       nav.Href(),
		Redirected: nav.Redirected,
		Components: nav.Components(),
	}
	for _, a := range nav.Chain {
		act := ActivationJSON{Component: a.Component, URL: a.URL, Params: a.AllParams()}
		if len(a.Data) > 0 {
			act.Data = a.Data
		}
		out.Chain = append(out.Chain, act)
	}
	return out
}

// handleNavigate runs a navigation, resolvers included, without rendering.
// URL: /api/navigate?url=/clusters/c1/instances/n1/configs
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		target = "/"
	}

	nav, err := s.router.Navigate(r.Context(), target)
	if err != nil {
		log.Debugf("[web] navigate %s: %v", target, err)
		HelixError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, navigationJSON(nav))
}

// handleAuditLogs returns recent audit entries, newest first
func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if db.DB == nil {
		WriteError(w, NewAPIErrorWithSuggestion(ErrCodeDatabaseError, "Audit database is disabled",
			"Start the console without --no-db to record and browse the audit log."))
		return
	}

	q := r.URL.Query()
	filter := db.AuditFilter{
		Limit:        200,
		User:         q.Get("user"),
		Action:       q.Get("action"),
		ActionType:   db.ActionType(q.Get("action_type")),
		Resource:     q.Get("resource"),
		HelixCluster: q.Get("cluster"),
		Source:       q.Get("source"),
		OnlyErrors:   q.Get("only_errors") == "true",
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			BadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	log.Debugf("[web] audit query: %s", db.FormatAuditFilter(filter))

	logs, err := db.GetAuditLogsFiltered(filter)
	if err != nil {
		WriteError(w, NewAPIError(ErrCodeDatabaseError, err.Error()))
		return
	}
	if logs == nil {
		logs = []db.AuditRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
