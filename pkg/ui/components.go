package ui

import (
	"encoding/json"
	"fmt"
	"sort"

	"sigs.k8s.io/yaml"
)

// Header backs DetailHeader.
type Header struct {
	Title    string
	Subtitle string
	// Tags are small labels shown after the title, e.g. "paused"
	Tags []Tag
	// Links are the tab links under the header
	Links []Link
}

// Tag is a labelled badge. Level is one of "ok", "warn", "error" or "".
type Tag struct {
	Label string
	Level string
}

// Link is one header tab.
type Link struct {
	Label  string
	Href   string
	Active bool
}

// Pair is one KeyValuePair row.
type Pair struct {
	Key   string
	Value string
}

// Pairs backs KeyValuePairs.
type Pairs struct {
	Title string
	Rows  []Pair
	// Empty is shown when there are no rows
	Empty string
}

// PairsFromMap builds sorted rows from a string map.
func PairsFromMap(title string, m map[string]string) Pairs {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := Pairs{Title: title, Empty: "No entries"}
	for _, k := range keys {
		p.Rows = append(p.Rows, Pair{Key: k, Value: m[k]})
	}
	return p
}

// JSONView backs JSONViewer. Mode selects the initially visible tab.
type JSONView struct {
	Title string
	JSON  string
	YAML  string
	Mode  string
}

// View modes of JSONViewer.
const (
	ModeJSON = "json"
	ModeYAML = "yaml"
)

// NewJSONView renders v as indented JSON and as YAML.
func NewJSONView(title string, v any) (JSONView, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return JSONView{}, fmt.Errorf("marshal %s: %w", title, err)
	}
	y, err := yaml.JSONToYAML(raw)
	if err != nil {
		return JSONView{}, fmt.Errorf("convert %s to yaml: %w", title, err)
	}
	return JSONView{Title: title, JSON: string(raw), YAML: string(y), Mode: ModeJSON}, nil
}

// Dialog backs InputDialog.
type Dialog struct {
	ID          string
	Title       string
	Message     string
	Placeholder string
	// Input is false for alert and confirmation dialogs, which have no text field
	Input bool
	// Cancelable adds the Cancel button
	Cancelable bool
}
