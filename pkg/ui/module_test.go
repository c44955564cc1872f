package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_Declarations(t *testing.T) {
	m := newTestModule(t)

	assert.Equal(t, []string{DetailHeader, InputDialog, JSONViewer, KeyValuePair, KeyValuePairs}, m.Declarations())
	assert.Equal(t, []string{DetailHeader, JSONViewer, KeyValuePair, KeyValuePairs}, m.Exports())
	assert.Equal(t, []string{InputDialog}, m.EntryComponents())
}

func TestModule_InputDialogIsNotExported(t *testing.T) {
	m := newTestModule(t)

	var buf bytes.Buffer
	err := m.Render(&buf, InputDialog, Dialog{ID: "d1", Title: "Create Cluster"})
	require.ErrorIs(t, err, ErrNotExported)
	assert.Empty(t, buf.String())

	err = m.RenderEntry(&buf, InputDialog, Dialog{
		ID:          "d1",
		Title:       "Create Cluster",
		Message:     "Enter the name",
		Placeholder: "cluster name",
		Input:       true,
		Cancelable:  true,
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `data-dialog="d1"`)
	assert.Contains(t, out, `placeholder="cluster name"`)
	assert.Contains(t, out, `<button value="false">Cancel</button>`)
}

func TestModule_RenderEntryRejectsExported(t *testing.T) {
	m := newTestModule(t)
	err := m.RenderEntry(&bytes.Buffer{}, DetailHeader, Header{Title: "x"})
	assert.ErrorIs(t, err, ErrNotEntry)
}

func TestModule_UnknownComponent(t *testing.T) {
	m := newTestModule(t)
	err := m.Render(&bytes.Buffer{}, "Sidebar", nil)
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

func TestModule_RegisterDuplicate(t *testing.T) {
	m := newTestModule(t)
	err := m.Register(Component{Name: DetailHeader, Template: "detail-header", Exported: true})
	assert.Error(t, err)

	err = m.Register(Component{Name: "Missing", Template: "missing"})
	assert.Error(t, err)
}

func TestDetailHeader(t *testing.T) {
	m := newTestModule(t)

	var buf bytes.Buffer
	err := m.Render(&buf, DetailHeader, Header{
		Title:    "myCluster",
		Subtitle: "controller: ctrl-1",
		Tags:     []Tag{{Label: "maintenance", Level: "warn"}},
		Links: []Link{
			{Label: "Resources", Href: "/clusters/myCluster/resources", Active: true},
			{Label: "Instances", Href: "/clusters/myCluster/instances"},
		},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "<h1>myCluster")
	assert.Contains(t, out, `class="tag tag-warn"`)
	assert.Contains(t, out, `<a href="/clusters/myCluster/resources" class="active">Resources</a>`)
}

func TestDetailHeader_Escapes(t *testing.T) {
	m := newTestModule(t)

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf, DetailHeader, Header{Title: "<script>alert(1)</script>"}))
	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestKeyValuePairs(t *testing.T) {
	m := newTestModule(t)

	var buf bytes.Buffer
	pairs := PairsFromMap("Config", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, m.Render(&buf, KeyValuePairs, pairs))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, `class="kv-pair"`))
	assert.Less(t, strings.Index(out, "<th>a</th>"), strings.Index(out, "<th>b</th>"))
}

func TestKeyValuePairs_Empty(t *testing.T) {
	m := newTestModule(t)

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf, KeyValuePairs, PairsFromMap("Config", nil)))
	assert.Contains(t, buf.String(), "No entries")
	assert.NotContains(t, buf.String(), "<table>")
}

func TestKeyValuePair(t *testing.T) {
	m := newTestModule(t)

	html, err := m.HTML(KeyValuePair, Pair{Key: "HELIX_PORT", Value: "12000"})
	require.NoError(t, err)
	assert.Equal(t, "<tr class=\"kv-pair\"><th>HELIX_PORT</th><td>12000</td></tr>\n", string(html))
}

func TestJSONViewer(t *testing.T) {
	m := newTestModule(t)

	view, err := NewJSONView("Ideal State", map[string]any{
		"id":           "db",
		"simpleFields": map[string]string{"REPLICAS": "3"},
	})
	require.NoError(t, err)
	assert.Contains(t, view.JSON, "\n  \"id\": \"db\"")
	assert.Contains(t, view.YAML, "id: db\n")
	assert.Contains(t, view.YAML, "REPLICAS: \"3\"")

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf, JSONViewer, view))
	out := buf.String()
	assert.Contains(t, out, `data-mode="json"`)
	assert.Contains(t, out, `<pre class="yaml" hidden>`)
	assert.Contains(t, out, "&#34;id&#34;: &#34;db&#34;")
}

func TestJSONViewer_YAMLMode(t *testing.T) {
	m := newTestModule(t)

	view, err := NewJSONView("", []string{"a"})
	require.NoError(t, err)
	view.Mode = ModeYAML

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf, JSONViewer, view))
	assert.Contains(t, buf.String(), `<pre class="json" hidden>`)
	assert.Contains(t, buf.String(), "- a\n")
}

func TestNewJSONView_Unmarshalable(t *testing.T) {
	_, err := NewJSONView("bad", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestFuncMap_PageTemplate(t *testing.T) {
	m := newTestModule(t)

	// A page template embeds exported components, not entry ones.
	page := mustPage(t, m, `<main>{{component "DetailHeader" .}}</main>`)
	var buf bytes.Buffer
	require.NoError(t, page.Execute(&buf, Header{Title: "c1"}))
	assert.Contains(t, buf.String(), "<main><header class=\"detail-header\">")

	page = mustPage(t, m, `{{component "InputDialog" .}}`)
	err := page.Execute(&bytes.Buffer{}, Dialog{ID: "x"})
	assert.ErrorIs(t, err, ErrNotExported)
}
