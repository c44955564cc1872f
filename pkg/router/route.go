// Package router interprets an ordered table of URL patterns with nested
// children, redirects and pre-activation resolvers.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PathMatch controls how much of the URL a route must consume.
type PathMatch string

const (
	// PathMatchPrefix (the default) lets children consume the rest of the URL.
	PathMatchPrefix PathMatch = "prefix"
	// PathMatchFull requires the route to consume every remaining segment.
	PathMatchFull PathMatch = "full"
)

// Wildcard matches all remaining segments.
const Wildcard = "**"

// Params maps a ":name" path segment to its decoded value.
type Params map[string]string

// Resolver loads an entity before the route's component is activated.
type Resolver interface {
	Resolve(ctx context.Context, params Params) (any, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, params Params) (any, error)

func (f ResolverFunc) Resolve(ctx context.Context, params Params) (any, error) {
	return f(ctx, params)
}

// Route is one record of the routing table. Paths are relative to the parent
// and never start with "/".
type Route struct {
	Path       string
	Component  string
	RedirectTo string
	PathMatch  PathMatch
	Resolve    map[string]Resolver
	Data       map[string]any
	Children   []Route
}

func (r *Route) segments() []string {
	return splitPath(r.Path)
}

func (r *Route) full() bool {
	return r.PathMatch == PathMatchFull
}

var (
	// ErrNoMatch means no route in the table accepts the URL.
	ErrNoMatch = errors.New("router: no route matches")
	// ErrRedirectLoop means redirects did not settle.
	ErrRedirectLoop = errors.New("router: too many redirects")
	// ErrInvalidRoute is wrapped by table validation failures.
	ErrInvalidRoute = errors.New("router: invalid route")
)

// ResolveError reports a resolver failure. No component of the navigation
// is activated when one is returned.
type ResolveError struct {
	URL       string
	Component string
	Key       string
	Err       error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("router: resolving %q for %s at %s: %v", e.Key, e.Component, e.URL, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func validate(routes []Route, prefix string) error {
	for i := range routes {
		r := &routes[i]
		where := strings.Trim(prefix+"/"+r.Path, "/")

		if strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("%w %q: path must be relative", ErrInvalidRoute, where)
		}
		switch r.PathMatch {
		case "", PathMatchPrefix, PathMatchFull:
		default:
			return fmt.Errorf("%w %q: unknown pathMatch %q", ErrInvalidRoute, where, r.PathMatch)
		}
		if r.RedirectTo != "" {
			if r.Component != "" || len(r.Children) > 0 || len(r.Resolve) > 0 {
				return fmt.Errorf("%w %q: redirect routes cannot have a component, children or resolvers", ErrInvalidRoute, where)
			}
		}
		if r.Path == "" && r.RedirectTo != "" && !r.full() {
			// An empty prefix redirect would match every URL and loop
			return fmt.Errorf("%w %q: empty-path redirect needs pathMatch full", ErrInvalidRoute, where)
		}

		segs := r.segments()
		for j, s := range segs {
			if s == Wildcard && j != len(segs)-1 {
				return fmt.Errorf("%w %q: %s must be the last segment", ErrInvalidRoute, where, Wildcard)
			}
			if strings.HasPrefix(s, ":") && len(s) == 1 {
				return fmt.Errorf("%w %q: empty parameter name", ErrInvalidRoute, where)
			}
		}
		for key, res := range r.Resolve {
			if res == nil {
				return fmt.Errorf("%w %q: resolver %q is nil", ErrInvalidRoute, where, key)
			}
		}

		if err := validate(r.Children, where); err != nil {
			return err
		}
	}
	return nil
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
