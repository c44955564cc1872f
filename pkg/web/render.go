package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloudbro-kube-ai/helix-console/pkg/console"
	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
	"github.com/cloudbro-kube-ai/helix-console/pkg/ui"
)

// viewData is what a component template receives.
type viewData struct {
	console.View
	// Current is the full page path, used to mark active tabs
	Current string
	// Child is the already rendered inner component
	Child template.HTML
	Error string
}

// layoutData is what the page layout receives.
type layoutData struct {
	Title       string
	Breadcrumbs []ui.Link
	Body        template.HTML
	Error       *APIError
}

var pageFuncs = template.FuncMap{
	"pathEscape":       url.PathEscape,
	"pairs":            ui.PairsFromMap,
	"jsonView":         ui.NewJSONView,
	"clusterHeader":    clusterHeader,
	"instanceHeader":   instanceHeader,
	"resourceHeader":   resourceHeader,
	"controllerHeader": controllerHeader,
	"resourcePairs":    resourcePairs,
	"instancePairs":    instancePairs,
	"controllerPairs":  controllerPairs,
	"placement":        placement,
	"formatTime":       formatTime,
}

func tab(label, href, current string) ui.Link {
	return ui.Link{Label: label, Href: href, Active: current == href || strings.HasPrefix(current, href+"/")}
}

func clusterHeader(c *helix.Cluster, current string) ui.Header {
	base := "/clusters/" + url.PathEscape(c.Name)
	h := ui.Header{
		Title: c.Name,
		Links: []ui.Link{
			tab("Resources", base+"/resources", current),
			tab("Instances", base+"/instances", current),
			tab("Configs", base+"/configs", current),
			tab("Controller", base+"/controller", current),
		},
	}
	if c.Controller != "" {
		h.Subtitle = "Controller: " + c.Controller
	} else {
		h.Subtitle = "No active controller"
	}
	if c.Paused {
		h.Tags = append(h.Tags, ui.Tag{Label: "disabled", Level: "error"})
	}
	if c.Maintenance {
		h.Tags = append(h.Tags, ui.Tag{Label: "maintenance", Level: "warn"})
	}
	return h
}

func instanceHeader(cluster string, i *helix.Instance, current string) ui.Header {
	base := "/clusters/" + url.PathEscape(cluster) + "/instances/" + url.PathEscape(i.Name)
	h := ui.Header{
		Title:    i.Name,
		Subtitle: "Instance of " + cluster,
		Links: []ui.Link{
			tab("Resources", base+"/resources", current),
			tab("Configs", base+"/configs", current),
			tab("History", base+"/history", current),
		},
	}
	if i.Online() {
		h.Tags = append(h.Tags, ui.Tag{Label: "online", Level: "ok"})
	} else {
		h.Tags = append(h.Tags, ui.Tag{Label: "offline", Level: "error"})
	}
	if !i.Enabled() {
		h.Tags = append(h.Tags, ui.Tag{Label: "disabled", Level: "warn"})
	}
	return h
}

func resourceHeader(cluster string, r *helix.Resource) ui.Header {
	h := ui.Header{Title: r.Name, Subtitle: "Resource of " + cluster}
	if r.ExternalView.IsEmpty() {
		h.Tags = append(h.Tags, ui.Tag{Label: "not serving", Level: "warn"})
	}
	return h
}

func controllerHeader(v *console.ControllerDetailView, current string) ui.Header {
	base := "/clusters/" + url.PathEscape(v.Cluster) + "/controller"
	h := ui.Header{
		Title: "Controller",
		Links: []ui.Link{tab("History", base+"/history", current)},
	}
	if v.Controller == nil {
		h.Subtitle = "No leader elected in " + v.Cluster
		h.Tags = []ui.Tag{{Label: "no leader", Level: "error"}}
	} else {
		h.Subtitle = v.Controller.Name
	}
	return h
}

func resourcePairs(r *helix.Resource) ui.Pairs {
	return ui.Pairs{
		Title: "Summary",
		Rows: []ui.Pair{
			{Key: "State model", Value: r.StateModel()},
			{Key: "Rebalance mode", Value: r.RebalanceMode()},
			{Key: "Replicas", Value: r.Replicas()},
			{Key: "Partitions", Value: strconv.Itoa(len(r.Partitions()))},
		},
	}
}

func instancePairs(i *helix.Instance) ui.Pairs {
	return ui.Pairs{
		Title: "Summary",
		Rows: []ui.Pair{
			{Key: "Host", Value: i.Host()},
			{Key: "Port", Value: i.Port()},
			{Key: "Enabled", Value: strconv.FormatBool(i.Enabled())},
			{Key: "Online", Value: strconv.FormatBool(i.Online())},
			{Key: "Helix version", Value: i.Version()},
			{Key: "Session", Value: i.SessionID()},
		},
		Empty: "No details",
	}
}

func controllerPairs(c *helix.Controller) ui.Pairs {
	p := ui.PairsFromMap("Leader", c.Fields)
	p.Rows = append([]ui.Pair{
		{Key: "Name", Value: c.Name},
		{Key: "Version", Value: c.Version},
		{Key: "Session", Value: c.SessionID},
	}, p.Rows...)
	return p
}

// placement formats a partition's replica map as "node1=MASTER, node2=SLAVE".
func placement(m map[string]string) string {
	if len(m) == 0 {
		return "-"
	}
	nodes := make([]string, 0, len(m))
	for n := range m {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n + "=" + m[n]
	}
	return strings.Join(parts, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// breadcrumbs lists the activated levels as links.
func breadcrumbs(nav *router.Navigation) []ui.Link {
	var out []ui.Link
	seen := make(map[string]bool)
	for _, a := range nav.Chain {
		if a.Component == "" || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		label := a.URL[strings.LastIndex(a.URL, "/")+1:]
		if label == "" {
			label = "home"
		}
		label, _ = url.PathUnescape(label)
		out = append(out, ui.Link{Label: label, Href: a.URL, Active: a.URL == nav.URL})
	}
	return out
}

// renderViews renders the activated components from the innermost outward,
// nesting each inside its parent.
func (s *Server) renderViews(nav *router.Navigation, views []console.View) (template.HTML, error) {
	var child template.HTML
	for i := len(views) - 1; i >= 0; i-- {
		v := views[i]
		if v.Component == "" {
			continue
		}
		name := v.Component
		data := viewData{View: v, Current: nav.URL, Child: child}
		if v.Err != nil {
			name = "view-error"
			data.Error = console.ErrorMessage(v.Err)
		}

		var buf bytes.Buffer
		if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
			return "", fmt.Errorf("render %s: %w", v.Component, err)
		}
		child = template.HTML(buf.String())
	}
	return child, nil
}

func (s *Server) renderLayout(w http.ResponseWriter, status int, data layoutData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Errorf("[web] render layout: %v", err)
		WriteError(w, NewAPIError(ErrCodeInternalError, "Failed to render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
