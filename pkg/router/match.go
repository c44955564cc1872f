package router

import (
	"net/url"
	"strings"
)

// ActivatedRoute is one matched level of the component tree.
type ActivatedRoute struct {
	Route     *Route
	Component string
	// Params holds only the parameters bound by this level.
	Params Params
	// URL is the absolute path consumed up to and including this level.
	URL string
	// Data is the route's static data merged with resolved values.
	Data   map[string]any
	Parent *ActivatedRoute
}

// Param returns a parameter from this level or the nearest ancestor.
func (a *ActivatedRoute) Param(name string) string {
	for cur := a; cur != nil; cur = cur.Parent {
		if v, ok := cur.Params[name]; ok {
			return v
		}
	}
	return ""
}

// AllParams merges parameters from the root down; inner levels win.
func (a *ActivatedRoute) AllParams() Params {
	var chain []*ActivatedRoute
	for cur := a; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	out := make(Params)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Params {
			out[k] = v
		}
	}
	return out
}

// Lookup returns a data value from this level or the nearest ancestor.
func (a *ActivatedRoute) Lookup(key string) (any, bool) {
	for cur := a; cur != nil; cur = cur.Parent {
		if v, ok := cur.Data[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Flag reads a boolean data value, false when absent.
func (a *ActivatedRoute) Flag(key string) bool {
	v, ok := a.Lookup(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// recognition is the outcome of matching one URL path against the table:
// either a redirect target or a chain of matched routes.
type recognition struct {
	redirect string
	chain    []*ActivatedRoute
}

// recognize matches path without running resolvers or following redirects.
func recognize(routes []Route, path string) (*recognition, error) {
	segs, err := decodeSegments(path)
	if err != nil {
		return nil, err
	}
	rec, ok := matchLevel(routes, segs, nil, nil)
	if !ok {
		return nil, ErrNoMatch
	}
	return rec, nil
}

func decodeSegments(path string) ([]string, error) {
	raw := splitPath(path)
	segs := make([]string, len(raw))
	for i, s := range raw {
		d, err := url.PathUnescape(s)
		if err != nil {
			return nil, err
		}
		segs[i] = d
	}
	return segs, nil
}

// matchLevel tries routes in order. consumed holds the segments matched by
// ancestors, parent the activated ancestor (nil at the root).
func matchLevel(routes []Route, segs, consumed []string, parent *ActivatedRoute) (*recognition, bool) {
	for i := range routes {
		r := &routes[i]

		params, n, ok := matchSegments(r.segments(), segs)
		if !ok {
			continue
		}
		rest := segs[n:]
		if r.full() && len(rest) > 0 {
			continue
		}

		if r.RedirectTo != "" {
			return &recognition{redirect: redirectTarget(r.RedirectTo, consumed, rest, params)}, true
		}

		here := append(append([]string{}, consumed...), segs[:n]...)
		node := &ActivatedRoute{
			Route:     r,
			Component: r.Component,
			Params:    params,
			URL:       joinURL(here),
			Data:      copyData(r.Data),
			Parent:    parent,
		}

		if len(r.Children) == 0 {
			if len(rest) > 0 {
				continue
			}
			return &recognition{chain: []*ActivatedRoute{node}}, true
		}

		child, ok := matchLevel(r.Children, rest, here, node)
		if !ok {
			continue
		}
		if child.redirect != "" {
			return child, true
		}
		return &recognition{chain: append([]*ActivatedRoute{node}, child.chain...)}, true
	}
	return nil, false
}

// matchSegments matches a route's pattern against the head of segs.
func matchSegments(pattern, segs []string) (Params, int, bool) {
	params := Params{}
	for i, p := range pattern {
		if p == Wildcard {
			return params, len(segs), true
		}
		if i >= len(segs) {
			return nil, 0, false
		}
		if strings.HasPrefix(p, ":") {
			params[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, 0, false
		}
	}
	return params, len(pattern), true
}

// redirectTarget builds the new absolute path. Absolute targets replace the
// URL; relative ones replace the redirecting route's own segments. Unconsumed
// segments are carried over and ":name" placeholders are substituted.
func redirectTarget(to string, consumed, rest []string, params Params) string {
	var base []string
	if !strings.HasPrefix(to, "/") {
		base = append(base, consumed...)
	}
	for _, s := range splitPath(to) {
		if strings.HasPrefix(s, ":") {
			if v, ok := params[s[1:]]; ok {
				s = v
			}
		}
		base = append(base, s)
	}
	base = append(base, rest...)
	return joinURL(base)
}

func joinURL(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	esc := make([]string, len(segs))
	for i, s := range segs {
		esc[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(esc, "/")
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
