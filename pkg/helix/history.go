package helix

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HistoryEntry is one leadership (controller) or session (participant) change.
type HistoryEntry struct {
	Date       string            `json:"date"`
	Time       time.Time         `json:"time"`
	Controller string            `json:"controller,omitempty"`
	Session    string            `json:"session,omitempty"`
	Version    string            `json:"version,omitempty"`
	Fields     map[string]string `json:"fields"`
}

// ParseHistoryLine parses the Helix string form
// "{DATE=2017-04-13-22:33:55, CONTROLLER=host_12923, TIME=1492122835198}".
func ParseHistoryLine(line string) (HistoryEntry, error) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return HistoryEntry{}, fmt.Errorf("malformed history line %q", line)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")

	fields := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return HistoryEntry{}, fmt.Errorf("malformed history field %q in %q", part, line)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	entry := HistoryEntry{
		Date:       fields["DATE"],
		Controller: fields["CONTROLLER"],
		Session:    fields["SESSION"],
		Version:    fields["VERSION"],
		Fields:     fields,
	}
	if ts := fields["TIME"]; ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return HistoryEntry{}, fmt.Errorf("bad TIME %q in history: %w", ts, err)
		}
		entry.Time = time.UnixMilli(ms).UTC()
	}
	return entry, nil
}

// ParseHistory parses every line, skipping malformed ones, newest first.
func ParseHistory(lines []string) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		e, err := ParseHistoryLine(lines[i])
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.After(entries[j].Time)
	})
	return entries
}
