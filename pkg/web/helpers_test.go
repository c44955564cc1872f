package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/cloudbro-kube-ai/helix-console/pkg/config"
	"github.com/cloudbro-kube-ai/helix-console/pkg/db"
	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/notify"
)

// fakeHelix serves cluster "myCluster" with resource "db" and instance "node1".
type fakeHelix struct {
	mu      sync.Mutex
	calls   []string
	pingErr error
	failOn  map[string]error
}

func (f *fakeHelix) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeHelix) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func helixNotFound(path string) error {
	return &helix.StatusError{Method: http.MethodGet, Path: path, StatusCode: http.StatusNotFound}
}

func (f *fakeHelix) Ping(context.Context) error { return f.pingErr }

func (f *fakeHelix) ListClusters(context.Context) ([]string, error) {
	return []string{"myCluster"}, f.record("ListClusters")
}

func (f *fakeHelix) GetCluster(_ context.Context, name string) (*helix.Cluster, error) {
	if err := f.record("GetCluster " + name); err != nil {
		return nil, err
	}
	if name != "myCluster" {
		return nil, helixNotFound("/clusters/" + name)
	}
	return &helix.Cluster{Name: name, Controller: "ctrl1", Maintenance: true, Resources: []string{"db"}, Instances: []string{"node1"}}, nil
}

func (f *fakeHelix) CreateCluster(_ context.Context, name string) error {
	return f.record("CreateCluster " + name)
}

func (f *fakeHelix) DeleteCluster(_ context.Context, name string) error {
	return f.record("DeleteCluster " + name)
}

func (f *fakeHelix) ClusterCommand(_ context.Context, name string, cmd helix.ClusterCommand) error {
	return f.record("ClusterCommand " + name + " " + string(cmd))
}

func (f *fakeHelix) GetClusterConfig(_ context.Context, name string) (*helix.Record, error) {
	return &helix.Record{ID: name, SimpleFields: map[string]string{"allowParticipantAutoJoin": "true"}}, f.record("GetClusterConfig " + name)
}

func (f *fakeHelix) UpdateClusterConfig(_ context.Context, name string, rec helix.Record) error {
	key := rec.SimpleKeys()[0]
	return f.record("UpdateClusterConfig " + name + " " + key + "=" + rec.Simple(key))
}

func (f *fakeHelix) ListResources(_ context.Context, cluster string) ([]helix.ResourceSummary, error) {
	return []helix.ResourceSummary{{Name: "db", Alive: true}}, f.record("ListResources " + cluster)
}

func (f *fakeHelix) GetResource(_ context.Context, cluster, name string) (*helix.Resource, error) {
	if err := f.record("GetResource " + cluster + " " + name); err != nil {
		return nil, err
	}
	if name != "db" {
		return nil, helixNotFound("/clusters/" + cluster + "/resources/" + name)
	}
	return &helix.Resource{
		Name:    name,
		Cluster: cluster,
		IdealState: &helix.Record{
			SimpleFields: map[string]string{"STATE_MODEL_DEF_REF": "MasterSlave", "REPLICAS": "2"},
			MapFields:    map[string]map[string]string{"db_0": {"node1": "MASTER"}},
		},
		ExternalView: &helix.Record{
			MapFields: map[string]map[string]string{"db_0": {"node1": "MASTER"}},
		},
	}, nil
}

func (f *fakeHelix) ListInstances(_ context.Context, cluster string) ([]helix.InstanceSummary, error) {
	return []helix.InstanceSummary{{Name: "node1", Online: true, Enabled: true}}, f.record("ListInstances " + cluster)
}

func (f *fakeHelix) GetInstance(_ context.Context, cluster, name string) (*helix.Instance, error) {
	return &helix.Instance{
		Name:         name,
		Cluster:      cluster,
		Config:       &helix.Record{SimpleFields: map[string]string{"HELIX_HOST": "10.0.0.1", "HELIX_PORT": "12000"}},
		LiveInstance: &helix.Record{SimpleFields: map[string]string{"SESSION_ID": "abc"}},
	}, f.record("GetInstance " + cluster + " " + name)
}

func (f *fakeHelix) SetInstanceEnabled(_ context.Context, cluster, name string, enabled bool) error {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	return f.record("SetInstanceEnabled " + cluster + " " + name + " " + verb)
}

func (f *fakeHelix) ListInstanceResources(_ context.Context, cluster, instance string) ([]string, error) {
	return []string{"db"}, f.record("ListInstanceResources " + cluster + " " + instance)
}

func (f *fakeHelix) GetInstanceConfig(_ context.Context, cluster, instance string) (*helix.Record, error) {
	return &helix.Record{ID: instance, SimpleFields: map[string]string{"HELIX_HOST": "10.0.0.1"}}, f.record("GetInstanceConfig " + cluster + " " + instance)
}

func (f *fakeHelix) GetInstanceHistory(_ context.Context, cluster, instance string) ([]helix.HistoryEntry, error) {
	if err := f.record("GetInstanceHistory " + cluster + " " + instance); err != nil {
		return nil, err
	}
	return []helix.HistoryEntry{{Session: "s1", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

func (f *fakeHelix) GetController(_ context.Context, cluster string) (*helix.Controller, error) {
	return &helix.Controller{Cluster: cluster, Name: "ctrl1", Version: "1.0.4"}, f.record("GetController " + cluster)
}

func (f *fakeHelix) GetControllerHistory(_ context.Context, cluster string) ([]helix.HistoryEntry, error) {
	return []helix.HistoryEntry{{Controller: "ctrl1"}}, f.record("GetControllerHistory " + cluster)
}

type auditSink struct {
	mu      sync.Mutex
	entries []db.AuditEntry
}

func (s *auditSink) record(e db.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *auditSink) Entries() []db.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.AuditEntry(nil), s.entries...)
}

type testEnv struct {
	server  *Server
	backend *fakeHelix
	clock   *clocktesting.FakeClock
	audit   *auditSink
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Web.RateLimit = 0
	for _, m := range mutate {
		m(cfg)
	}

	env := &testEnv{
		backend: &fakeHelix{},
		clock:   clocktesting.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		audit:   &auditSink{},
	}
	s, err := NewServer(cfg, env.backend, &VersionInfo{Version: "1.2.3"},
		WithClock(env.clock), WithAuditFunc(env.audit.record))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	env.server = s
	return env
}

// do runs a request through the full middleware chain.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// openSession loads a page and returns the session cookie it issued.
func (e *testEnv) openSession(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/clusters", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func (e *testEnv) hub(t *testing.T, cookie *http.Cookie) *notify.Hub {
	t.Helper()
	hub, ok := e.server.sessions.Get(cookie.Value)
	require.True(t, ok, "session %s not found", cookie.Value)
	return hub
}

func nextEvent(t *testing.T, ch <-chan notify.Event) notify.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return notify.Event{}
	}
}
