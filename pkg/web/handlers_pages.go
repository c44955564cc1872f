package web

import (
	"net/http"
	"strings"

	"github.com/cloudbro-kube-ai/helix-console/pkg/console"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

// handlePage renders the console page for the request path. Redirecting
// routes answer 302; a failing resolver refuses the page entirely.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		NotFound(w, "Unknown API endpoint: "+r.URL.Path)
		return
	}

	uri := r.URL.RequestURI()
	rec, err := s.router.Recognize(uri)
	if err != nil {
		s.renderError(w, r, ParseHelixError(err))
		return
	}
	if len(rec.Redirected) > 0 {
		http.Redirect(w, r, rec.Href(), http.StatusFound)
		return
	}

	nav, err := s.router.Navigate(r.Context(), uri)
	if err != nil {
		log.Infof("[web] navigation to %s refused: %v", rec.URL, err)
		s.renderError(w, r, ParseHelixError(err))
		return
	}

	_, hub := s.session(w, r)
	views := s.pages.LoadNavigation(r.Context(), nav)

	// A failed page load is reported and the rest of the page still shows
	helper := s.notifier(hub)
	for _, v := range views {
		if v.Err != nil {
			log.Warnf("[web] load %s for %s: %v", v.Component, v.URL, v.Err)
			helper.ShowError(console.ErrorMessage(v.Err))
		}
	}

	body, err := s.renderViews(nav, views)
	if err != nil {
		log.Errorf("[web] %v", err)
		s.renderError(w, r, NewAPIError(ErrCodeInternalError, "Failed to render page"))
		return
	}

	s.renderLayout(w, http.StatusOK, layoutData{
		Title:       titleFor(nav.Components()),
		Breadcrumbs: breadcrumbs(nav),
		Body:        body,
	})
}

// renderError answers JSON to API clients and an error page to browsers.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, apiErr *APIError) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		WriteError(w, apiErr)
		return
	}
	s.renderLayout(w, apiErr.StatusCode, layoutData{Title: apiErr.Message, Error: apiErr})
}

func titleFor(components []string) string {
	if len(components) == 0 {
		return "Helix Console"
	}
	return components[len(components)-1] + " - Helix Console"
}
