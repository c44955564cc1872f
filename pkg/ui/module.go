// Package ui holds the console's shared components: the detail header, the
// key/value table, the JSON viewer and the input dialog. Components are
// html/template fragments registered in a Module that decides which of them
// pages may embed and which are only opened as dialogs.
package ui

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"
	"sync"
)

// Component names.
const (
	InputDialog   = "InputDialog"
	DetailHeader  = "DetailHeader"
	KeyValuePairs = "KeyValuePairs"
	KeyValuePair  = "KeyValuePair"
	JSONViewer    = "JSONViewer"
)

var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrNotExported      = errors.New("component is not exported")
	ErrNotEntry         = errors.New("component is not an entry component")
)

//go:embed templates/*.html
var templateFS embed.FS

// Component is one registered fragment.
type Component struct {
	Name string
	// Template is the name of the html/template definition that renders it
	Template string
	Exported bool
	Entry    bool
}

// Module is a registry of components sharing one template set.
type Module struct {
	mu         sync.RWMutex
	tmpl       *template.Template
	components map[string]Component
}

// NewModule parses the embedded templates and registers the shared components.
func NewModule() (*Module, error) {
	m := &Module{components: make(map[string]Component)}

	tmpl, err := template.New("ui").Funcs(m.funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse ui templates: %w", err)
	}
	m.tmpl = tmpl

	for _, c := range []Component{
		{Name: InputDialog, Template: "input-dialog", Entry: true},
		{Name: DetailHeader, Template: "detail-header", Exported: true},
		{Name: KeyValuePairs, Template: "key-value-pairs", Exported: true},
		{Name: KeyValuePair, Template: "key-value-pair", Exported: true},
		{Name: JSONViewer, Template: "json-viewer", Exported: true},
	} {
		if err := m.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register declares a component. Its template must already be parsed.
func (m *Module) Register(c Component) error {
	if c.Name == "" {
		return errors.New("component name must not be empty")
	}
	if m.tmpl.Lookup(c.Template) == nil {
		return fmt.Errorf("component %s: template %q not defined", c.Name, c.Template)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.components[c.Name]; dup {
		return fmt.Errorf("component %s already declared", c.Name)
	}
	m.components[c.Name] = c
	return nil
}

// Declarations lists every declared component.
func (m *Module) Declarations() []string {
	return m.names(func(Component) bool { return true })
}

// Exports lists the components pages may embed.
func (m *Module) Exports() []string {
	return m.names(func(c Component) bool { return c.Exported })
}

// EntryComponents lists the components opened on demand as dialogs.
func (m *Module) EntryComponents() []string {
	return m.names(func(c Component) bool { return c.Entry })
}

func (m *Module) names(keep func(Component) bool) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for name, c := range m.components {
		if keep(c) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Module) lookup(name string) (Component, error) {
	m.mu.RLock()
	c, ok := m.components[name]
	m.mu.RUnlock()
	if !ok {
		return Component{}, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return c, nil
}

// Render writes an exported component.
func (m *Module) Render(w io.Writer, name string, data any) error {
	c, err := m.lookup(name)
	if err != nil {
		return err
	}
	if !c.Exported {
		return fmt.Errorf("%w: %s", ErrNotExported, name)
	}
	return m.execute(w, c, data)
}

// RenderEntry writes an entry component, such as a dialog body.
func (m *Module) RenderEntry(w io.Writer, name string, data any) error {
	c, err := m.lookup(name)
	if err != nil {
		return err
	}
	if !c.Entry {
		return fmt.Errorf("%w: %s", ErrNotEntry, name)
	}
	return m.execute(w, c, data)
}

func (m *Module) execute(w io.Writer, c Component, data any) error {
	// Buffer so a failing template never leaves half a fragment behind.
	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, c.Template, data); err != nil {
		return fmt.Errorf("render %s: %w", c.Name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// HTML renders an exported component to a string for embedding in a page.
func (m *Module) HTML(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.Render(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// FuncMap exposes the module to page templates as {{component "Name" .}}.
func (m *Module) FuncMap() template.FuncMap {
	return template.FuncMap{"component": m.HTML}
}

func (m *Module) funcs() template.FuncMap {
	return template.FuncMap{
		// KeyValuePairs nests KeyValuePair rows through this
		"component": m.HTML,
	}
}
