package router

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Describe writes the routing table as an indented tree, one route per line.
func (r *Router) Describe(w io.Writer) error {
	return describe(w, r.routes, "", 0)
}

func describe(w io.Writer, routes []Route, parent string, depth int) error {
	for i := range routes {
		rt := &routes[i]
		full := strings.TrimSuffix(parent, "/") + "/" + rt.Path
		if rt.Path == "" {
			full = parent
			if full == "" {
				full = "/"
			}
		}

		var b strings.Builder
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(full)
		switch {
		case rt.RedirectTo != "":
			fmt.Fprintf(&b, " -> %s", rt.RedirectTo)
		case rt.Component != "":
			fmt.Fprintf(&b, " [%s]", rt.Component)
		}
		if rt.full() {
			b.WriteString(" (full)")
		}
		if len(rt.Resolve) > 0 {
			fmt.Fprintf(&b, " resolve=%s", strings.Join(resolverKeys(rt.Resolve), ","))
		}
		if len(rt.Data) > 0 {
			keys := make([]string, 0, len(rt.Data))
			for k, v := range rt.Data {
				keys = append(keys, fmt.Sprintf("%s=%v", k, v))
			}
			sort.Strings(keys)
			fmt.Fprintf(&b, " data{%s}", strings.Join(keys, ","))
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := describe(w, rt.Children, full, depth+1); err != nil {
			return err
		}
	}
	return nil
}
