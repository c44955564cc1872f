package ui

import (
	"html/template"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	m, err := NewModule()
	require.NoError(t, err)
	return m
}

func mustPage(t *testing.T, m *Module, text string) *template.Template {
	t.Helper()
	tmpl, err := template.New("page").Funcs(m.FuncMap()).Parse(text)
	require.NoError(t, err)
	return tmpl
}
