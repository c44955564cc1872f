package helix

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudbro-kube-ai/helix-console/pkg/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.HelixConfig{
		Endpoint:     srv.URL,
		RetryEnabled: true,
		MaxRetries:   2,
		MaxBackoff:   0.01,
	}
	c, err := NewClient(cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RejectsBadEndpoint(t *testing.T) {
	if _, err := NewClient(config.HelixConfig{Endpoint: "zk://host:2181"}, time.Second); err == nil {
		t.Error("expected error for non-http endpoint")
	}
}

func TestListClusters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v2/clusters" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, map[string]any{"clusters": []string{"alpha", "beta"}})
	}))

	clusters, err := c.ListClusters(context.Background())
	if err != nil {
		t.Fatalf("ListClusters() error = %v", err)
	}
	if len(clusters) != 2 || clusters[0] != "alpha" || clusters[1] != "beta" {
		t.Errorf("ListClusters() = %v", clusters)
	}
}

func TestGetCluster(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/v2/clusters/myCluster":
			writeJSON(w, map[string]any{
				"id":            "myCluster",
				"controller":    "ctrl_1",
				"paused":        true,
				"maintenance":   false,
				"resources":     []string{"db"},
				"instances":     []string{"node1", "node2"},
				"liveInstances": []string{"node1"},
			})
		default:
			http.NotFound(w, r)
		}
	}))

	cl, err := c.GetCluster(context.Background(), "myCluster")
	if err != nil {
		t.Fatalf("GetCluster() error = %v", err)
	}
	if cl.Name != "myCluster" || cl.Controller != "ctrl_1" {
		t.Errorf("GetCluster() = %+v", cl)
	}
	if cl.Enabled() {
		t.Error("paused cluster should report Enabled() == false")
	}
	if len(cl.Instances) != 2 || len(cl.LiveInstances) != 1 {
		t.Errorf("instances = %v live = %v", cl.Instances, cl.LiveInstances)
	}

	_, err = c.GetCluster(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("GetCluster(missing) error = %v, want ErrNotFound", err)
	}

	_, err = c.GetCluster(context.Background(), "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCluster(\"\") error = %v, want ErrNotFound", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"clusters": []string{"alpha"}})
	}))

	clusters, err := c.ListClusters(context.Background())
	if err != nil {
		t.Fatalf("ListClusters() error = %v", err)
	}
	if len(clusters) != 1 {
		t.Errorf("ListClusters() = %v", clusters)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad cluster name", http.StatusBadRequest)
	}))

	_, err := c.GetCluster(context.Background(), "x")
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if serr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", serr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestPostIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if err := c.ClusterCommand(context.Background(), "alpha", CommandDisable); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestClusterCommandAndInstanceToggle(t *testing.T) {
	var got []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	}))
	ctx := context.Background()

	if err := c.ClusterCommand(ctx, "alpha", CommandEnableMaintenanceMode); err != nil {
		t.Fatal(err)
	}
	if err := c.SetInstanceEnabled(ctx, "alpha", "node 1", false); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateCluster(ctx, "beta"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteCluster(ctx, "beta"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"POST /admin/v2/clusters/alpha?command=enableMaintenanceMode",
		"POST /admin/v2/clusters/alpha/instances/node 1?command=disable",
		"PUT /admin/v2/clusters/beta?",
		"DELETE /admin/v2/clusters/beta?",
	}
	if len(got) != len(want) {
		t.Fatalf("requests = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUpdateClusterConfig_SendsRecord(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("command") != "update" {
			t.Errorf("command = %q, want update", r.URL.Query().Get("command"))
		}
		body, _ := io.ReadAll(r.Body)
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if rec.ID != "alpha" || rec.SimpleFields["PERSIST_BEST_POSSIBLE_ASSIGNMENT"] != "true" {
			t.Errorf("record = %+v", rec)
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := c.UpdateClusterConfig(context.Background(), "alpha", Record{
		SimpleFields: map[string]string{"PERSIST_BEST_POSSIBLE_ASSIGNMENT": "true"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListResourcesAndInstances(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/v2/clusters/alpha/resources":
			writeJSON(w, map[string]any{
				"idealStates":   []string{"db", "cache"},
				"externalViews": []string{"db"},
			})
		case "/admin/v2/clusters/alpha/instances":
			writeJSON(w, map[string]any{
				"instances": []string{"node1", "node2"},
				"online":    []string{"node1"},
				"disabled":  []string{"node2"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	res, err := c.ListResources(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || !res[0].Alive || res[1].Alive {
		t.Errorf("ListResources() = %+v", res)
	}

	inst, err := c.ListInstances(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(inst) != 2 {
		t.Fatalf("ListInstances() = %+v", inst)
	}
	if !inst[0].Online || !inst[0].Enabled {
		t.Errorf("node1 = %+v, want online and enabled", inst[0])
	}
	if inst[1].Online || inst[1].Enabled {
		t.Errorf("node2 = %+v, want offline and disabled", inst[1])
	}
}

func TestGetController(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/v2/clusters/alpha/controller":
			writeJSON(w, map[string]any{
				"id":            "alpha",
				"controller":    "ctrl-host_9000",
				"HELIX_VERSION": "1.0.4",
				"SESSION_ID":    "abc",
				"LIVE_INSTANCE": "4242@ctrl-host",
			})
		case "/admin/v2/clusters/headless/controller":
			writeJSON(w, map[string]any{"id": "headless"})
		case "/admin/v2/clusters/alpha/controller/history":
			writeJSON(w, map[string]any{"history": []string{
				"{DATE=2017-04-13-22:33:55, CONTROLLER=a, TIME=1492122835198}",
				"{DATE=2017-04-14-22:33:55, CONTROLLER=b, TIME=1492209235198}",
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	ctrl, err := c.GetController(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.Name != "ctrl-host_9000" || ctrl.Version != "1.0.4" || ctrl.SessionID != "abc" {
		t.Errorf("GetController() = %+v", ctrl)
	}
	if ctrl.Fields["LIVE_INSTANCE"] != "4242@ctrl-host" {
		t.Errorf("Fields = %v", ctrl.Fields)
	}

	if _, err := c.GetController(ctx, "headless"); !IsNotFound(err) {
		t.Errorf("GetController(headless) error = %v, want ErrNotFound", err)
	}

	hist, err := c.GetControllerHistory(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Controller != "b" {
		t.Errorf("history = %+v, want newest (b) first", hist)
	}
}

func TestGetInstanceAndHistory(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/v2/clusters/alpha/instances/node1":
			writeJSON(w, map[string]any{
				"id": "node1",
				"config": map[string]any{
					"id":           "node1",
					"simpleFields": map[string]string{"HELIX_HOST": "node1.local", "HELIX_PORT": "12000", "HELIX_ENABLED": "false"},
				},
				"liveInstance": map[string]any{
					"id":           "node1",
					"simpleFields": map[string]string{"HELIX_VERSION": "1.0.4", "SESSION_ID": "s1"},
				},
			})
		case "/admin/v2/clusters/alpha/instances/node1/history":
			writeJSON(w, map[string]any{
				"id": "node1",
				"listFields": map[string][]string{"HISTORY": {
					"{DATE=2018-01-01-00:00:00, SESSION=s0, VERSION=1.0.3, TIME=1514764800000}",
					"garbage",
				}},
			})
		case "/admin/v2/clusters/alpha/instances/node1/resources":
			writeJSON(w, map[string]any{"id": "node1", "resources": []string{"db"}})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	inst, err := c.GetInstance(ctx, "alpha", "node1")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Enabled() {
		t.Error("HELIX_ENABLED=false should report disabled")
	}
	if !inst.Online() {
		t.Error("instance with live instance node should be online")
	}
	if inst.Host() != "node1.local" || inst.Port() != "12000" || inst.Version() != "1.0.4" {
		t.Errorf("instance = host %s port %s version %s", inst.Host(), inst.Port(), inst.Version())
	}

	hist, err := c.GetInstanceHistory(ctx, "alpha", "node1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Session != "s0" {
		t.Errorf("history = %+v", hist)
	}

	res, err := c.ListInstanceResources(ctx, "alpha", "node1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0] != "db" {
		t.Errorf("resources = %v", res)
	}
}
