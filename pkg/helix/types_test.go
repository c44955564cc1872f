package helix

import (
	"testing"
	"time"
)

func TestParseHistoryLine(t *testing.T) {
	e, err := ParseHistoryLine("{DATE=2017-04-13-22:33:55, CONTROLLER=ltx1-app1133_12923, TIME=1492122835198}")
	if err != nil {
		t.Fatalf("ParseHistoryLine() error = %v", err)
	}
	if e.Date != "2017-04-13-22:33:55" {
		t.Errorf("Date = %q", e.Date)
	}
	if e.Controller != "ltx1-app1133_12923" {
		t.Errorf("Controller = %q", e.Controller)
	}
	want := time.UnixMilli(1492122835198).UTC()
	if !e.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", e.Time, want)
	}
}

func TestParseHistoryLine_Errors(t *testing.T) {
	for _, line := range []string{
		"DATE=x",
		"{DATE}",
		"{TIME=notanumber}",
	} {
		if _, err := ParseHistoryLine(line); err == nil {
			t.Errorf("ParseHistoryLine(%q) expected error", line)
		}
	}
}

func TestParseHistory_NewestFirstSkipsMalformed(t *testing.T) {
	lines := []string{
		"{CONTROLLER=first, TIME=1000}",
		"not a record",
		"{CONTROLLER=third, TIME=3000}",
		"{CONTROLLER=second, TIME=2000}",
	}
	got := ParseHistory(lines)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"third", "second", "first"} {
		if got[i].Controller != want {
			t.Errorf("entry %d = %s, want %s", i, got[i].Controller, want)
		}
	}
}

func TestResourcePartitions(t *testing.T) {
	r := &Resource{
		Name: "db",
		IdealState: &Record{
			SimpleFields: map[string]string{"STATE_MODEL_DEF_REF": "MasterSlave", "REPLICAS": "2", "REBALANCE_MODE": "FULL_AUTO"},
			MapFields: map[string]map[string]string{
				"db_1": {"node1": "MASTER", "node2": "SLAVE"},
				"db_0": {"node2": "MASTER", "node1": "SLAVE"},
			},
		},
		ExternalView: &Record{
			MapFields: map[string]map[string]string{
				"db_0": {"node2": "MASTER"},
				"db_2": {"node3": "OFFLINE"},
			},
		},
	}

	if r.StateModel() != "MasterSlave" || r.Replicas() != "2" || r.RebalanceMode() != "FULL_AUTO" {
		t.Errorf("simple fields: %s %s %s", r.StateModel(), r.Replicas(), r.RebalanceMode())
	}

	parts := r.Partitions()
	if len(parts) != 3 {
		t.Fatalf("Partitions() len = %d, want 3", len(parts))
	}
	if parts[0].Name != "db_0" || parts[2].Name != "db_2" {
		t.Errorf("Partitions() not sorted: %v", parts)
	}
	if parts[0].External["node2"] != "MASTER" {
		t.Errorf("db_0 external = %v", parts[0].External)
	}

	on3 := r.PartitionsOn("node3")
	if len(on3) != 1 || on3[0].Name != "db_2" {
		t.Errorf("PartitionsOn(node3) = %v", on3)
	}
	on1 := r.PartitionsOn("node1")
	if len(on1) != 2 {
		t.Errorf("PartitionsOn(node1) = %v, want 2", on1)
	}
}

func TestInstanceDefaults(t *testing.T) {
	inst := &Instance{Name: "node1"}
	if !inst.Enabled() {
		t.Error("instance without HELIX_ENABLED should be enabled")
	}
	if inst.Online() {
		t.Error("instance without live instance should be offline")
	}
}

func TestRecordHelpers(t *testing.T) {
	var nilRec *Record
	if nilRec.Simple("x") != "" || !nilRec.IsEmpty() || nilRec.SimpleKeys() != nil {
		t.Error("nil record helpers should be safe")
	}
	r := &Record{SimpleFields: map[string]string{"b": "2", "a": "1"}}
	keys := r.SimpleKeys()
	if len(keys) != 2 || keys[0] != "a" {
		t.Errorf("SimpleKeys() = %v", keys)
	}
}
