package router

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

// MaxRedirects bounds how many redirects a single navigation may follow.
const MaxRedirects = 10

// Router navigates URLs against a validated routing table.
type Router struct {
	routes []Route
}

// New validates the table and returns a Router for it.
func New(routes []Route) (*Router, error) {
	if err := validate(routes, ""); err != nil {
		return nil, err
	}
	return &Router{routes: routes}, nil
}

// MustNew is New for static tables; it panics on an invalid table.
func MustNew(routes []Route) *Router {
	r, err := New(routes)
	if err != nil {
		panic(err)
	}
	return r
}

// Routes returns the routing table.
func (r *Router) Routes() []Route {
	return r.routes
}

// Navigation is the result of a successful navigation.
type Navigation struct {
	// URL is the final path after redirects.
	URL   string
	Query url.Values
	// Redirected lists every path that redirected, in order.
	Redirected []string
	// Chain is the activated tree from the outermost component inward.
	Chain []*ActivatedRoute
}

// Leaf returns the innermost activated route.
func (n *Navigation) Leaf() *ActivatedRoute {
	if len(n.Chain) == 0 {
		return nil
	}
	return n.Chain[len(n.Chain)-1]
}

// Components lists the activated component names, outermost first. Routes
// without a component (grouping routes) are skipped.
func (n *Navigation) Components() []string {
	out := make([]string, 0, len(n.Chain))
	for _, a := range n.Chain {
		if a.Component != "" {
			out = append(out, a.Component)
		}
	}
	return out
}

// Href returns the final URL including the preserved query.
func (n *Navigation) Href() string {
	if len(n.Query) == 0 {
		return n.URL
	}
	return n.URL + "?" + n.Query.Encode()
}

// Recognize matches rawURL and follows redirects without running resolvers.
func (r *Router) Recognize(rawURL string) (*Navigation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("router: parse %q: %w", rawURL, err)
	}

	nav := &Navigation{Query: u.Query()}
	path := u.EscapedPath()
	for hops := 0; ; hops++ {
		if hops > MaxRedirects {
			return nil, fmt.Errorf("%w: %s", ErrRedirectLoop, strings.Join(nav.Redirected, " -> "))
		}
		rec, err := recognize(r.routes, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, path)
		}
		if rec.redirect == "" {
			nav.URL = canonical(path)
			nav.Chain = rec.chain
			return nav, nil
		}
		nav.Redirected = append(nav.Redirected, canonical(path))
		path = rec.redirect
	}
}

// Navigate recognizes rawURL, then runs every resolver of the activated
// chain concurrently. Resolved values are stored in the Data of the route
// that declared them. If any resolver fails, Navigate returns a
// *ResolveError and no navigation.
func (r *Router) Navigate(ctx context.Context, rawURL string) (*Navigation, error) {
	nav, err := r.Recognize(rawURL)
	if err != nil {
		return nil, err
	}

	type result struct {
		node  *ActivatedRoute
		key   string
		value any
	}
	var jobs []result
	for _, node := range nav.Chain {
		for _, key := range resolverKeys(node.Route.Resolve) {
			jobs = append(jobs, result{node: node, key: key})
		}
	}
	if len(jobs) == 0 {
		return nav, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range jobs {
		job := &jobs[i]
		g.Go(func() error {
			v, err := job.node.Route.Resolve[job.key].Resolve(gctx, job.node.AllParams())
			if err != nil {
				return &ResolveError{URL: nav.URL, Component: job.node.Component, Key: job.key, Err: err}
			}
			job.value = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Debugf("[router] navigation to %s cancelled: %v", nav.URL, err)
		return nil, err
	}

	for _, job := range jobs {
		job.node.Data[job.key] = job.value
	}
	return nav, nil
}

func resolverKeys(m map[string]Resolver) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func canonical(path string) string {
	segs := splitPath(path)
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}
