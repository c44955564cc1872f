package console

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
)

// Page loads the view data of one component for an activated route.
type Page interface {
	Load(ctx context.Context, a *router.ActivatedRoute) (any, error)
}

// PageFunc adapts a function to Page.
type PageFunc func(ctx context.Context, a *router.ActivatedRoute) (any, error)

func (f PageFunc) Load(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	return f(ctx, a)
}

// ClusterDetailView backs ClusterDetail. Cluster is nil on the overview.
type ClusterDetailView struct {
	Clusters []string       `json:"clusters"`
	Cluster  *helix.Cluster `json:"cluster,omitempty"`
}

// ConfigDetailView backs ConfigDetail for a cluster or an instance.
type ConfigDetailView struct {
	Cluster  string        `json:"cluster"`
	Instance string        `json:"instance,omitempty"`
	Config   *helix.Record `json:"config"`
}

// InstanceListView backs InstanceList.
type InstanceListView struct {
	Cluster   string                  `json:"cluster"`
	Instances []helix.InstanceSummary `json:"instances"`
}

// ResourceListView backs ResourceList for a cluster or an instance.
type ResourceListView struct {
	Cluster     string                  `json:"cluster"`
	Instance    string                  `json:"instance,omitempty"`
	ForInstance bool                    `json:"forInstance"`
	Resources   []helix.ResourceSummary `json:"resources"`
}

// ResourceDetailView backs ResourceDetail.
type ResourceDetailView struct {
	Cluster    string            `json:"cluster"`
	Resource   *helix.Resource   `json:"resource"`
	Partitions []helix.Partition `json:"partitions"`
}

// ControllerDetailView backs ControllerDetail. Controller is nil when the
// cluster has no leader.
type ControllerDetailView struct {
	Cluster    string            `json:"cluster"`
	Controller *helix.Controller `json:"controller,omitempty"`
}

// HistoryListView backs HistoryList for the controller or a participant.
type HistoryListView struct {
	Cluster  string               `json:"cluster"`
	Instance string               `json:"instance,omitempty"`
	Entries  []helix.HistoryEntry `json:"entries"`
}

// InstanceDetailView backs InstanceDetail.
type InstanceDetailView struct {
	Cluster  string          `json:"cluster"`
	Instance *helix.Instance `json:"instance"`
}

// View is one loaded level of a navigation.
type View struct {
	Component string `json:"component"`
	URL       string `json:"url"`
	Data      any    `json:"data,omitempty"`
	Err       error  `json:"-"`
}

// Pages maps component identifiers to their view models.
type Pages struct {
	pages map[string]Page
}

// NewPages registers a page for every console component.
func NewPages(backend Backend) *Pages {
	p := &pageLoader{backend: backend}
	return &Pages{pages: map[string]Page{
		ClusterDetail:    PageFunc(p.clusterDetail),
		ConfigDetail:     PageFunc(p.configDetail),
		InstanceList:     PageFunc(p.instanceList),
		ResourceList:     PageFunc(p.resourceList),
		ResourceDetail:   PageFunc(p.resourceDetail),
		ControllerDetail: PageFunc(p.controllerDetail),
		HistoryList:      PageFunc(p.historyList),
		InstanceDetail:   PageFunc(p.instanceDetail),
	}}
}

// Components lists the registered component identifiers.
func (p *Pages) Components() []string {
	out := make([]string, 0, len(p.pages))
	for k := range p.pages {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load runs the page registered for component.
func (p *Pages) Load(ctx context.Context, component string, a *router.ActivatedRoute) (any, error) {
	page, ok := p.pages[component]
	if !ok {
		return nil, fmt.Errorf("no page registered for component %q", component)
	}
	return page.Load(ctx, a)
}

// LoadNavigation loads every level of nav concurrently. A failing level
// keeps its error in View.Err; the other levels still load.
func (p *Pages) LoadNavigation(ctx context.Context, nav *router.Navigation) []View {
	views := make([]View, len(nav.Chain))
	var g errgroup.Group
	for i, a := range nav.Chain {
		views[i] = View{Component: a.Component, URL: a.URL}
		if a.Component == "" {
			continue
		}
		g.Go(func() error {
			views[i].Data, views[i].Err = p.Load(ctx, a.Component, a)
			return nil
		})
	}
	_ = g.Wait()
	return views
}

type pageLoader struct {
	backend Backend
}

// clusterName returns the cluster parameter under either of its names.
func clusterName(a *router.ActivatedRoute) string {
	if v := a.Param(ParamClusterName); v != "" {
		return v
	}
	return a.Param(ParamName)
}

func (p *pageLoader) clusterDetail(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	names, err := p.backend.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	sort.Strings(names)
	view := &ClusterDetailView{Clusters: names}
	if c, ok := ResolvedCluster(a); ok {
		view.Cluster = c
	}
	return view, nil
}

func (p *pageLoader) configDetail(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	cluster := clusterName(a)
	view := &ConfigDetailView{Cluster: cluster, Instance: a.Param(ParamInstanceName)}

	var err error
	if view.Instance != "" {
		view.Config, err = p.backend.GetInstanceConfig(ctx, cluster, view.Instance)
	} else {
		view.Config, err = p.backend.GetClusterConfig(ctx, cluster)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return view, nil
}

func (p *pageLoader) instanceList(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	cluster := clusterName(a)
	instances, err := p.backend.ListInstances(ctx, cluster)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })
	return &InstanceListView{Cluster: cluster, Instances: instances}, nil
}

func (p *pageLoader) resourceList(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	cluster := clusterName(a)
	view := &ResourceListView{Cluster: cluster, ForInstance: a.Flag(DataForInstance)}

	if view.ForInstance {
		view.Instance = a.Param(ParamInstanceName)
		names, err := p.backend.ListInstanceResources(ctx, cluster, view.Instance)
		if err != nil {
			return nil, fmt.Errorf("list resources on %s: %w", view.Instance, err)
		}
		sort.Strings(names)
		for _, n := range names {
			view.Resources = append(view.Resources, helix.ResourceSummary{Name: n, Alive: true})
		}
		return view, nil
	}

	res, err := p.backend.ListResources(ctx, cluster)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	view.Resources = res
	return view, nil
}

func (p *pageLoader) resourceDetail(_ context.Context, a *router.ActivatedRoute) (any, error) {
	res, ok := ResolvedResource(a)
	if !ok {
		return nil, fmt.Errorf("resource was not resolved: %w", helix.ErrNotFound)
	}
	return &ResourceDetailView{Cluster: clusterName(a), Resource: res, Partitions: res.Partitions()}, nil
}

func (p *pageLoader) controllerDetail(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	cluster := clusterName(a)
	ctrl, err := p.backend.GetController(ctx, cluster)
	if err != nil && !errors.Is(err, helix.ErrNotFound) {
		return nil, fmt.Errorf("load controller: %w", err)
	}
	return &ControllerDetailView{Cluster: cluster, Controller: ctrl}, nil
}

func (p *pageLoader) historyList(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	cluster := clusterName(a)
	view := &HistoryListView{Cluster: cluster, Instance: a.Param(ParamInstanceName)}

	var err error
	if view.Instance != "" {
		view.Entries, err = p.backend.GetInstanceHistory(ctx, cluster, view.Instance)
	} else {
		view.Entries, err = p.backend.GetControllerHistory(ctx, cluster)
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return view, nil
}

func (p *pageLoader) instanceDetail(ctx context.Context, a *router.ActivatedRoute) (any, error) {
	cluster := clusterName(a)
	inst, err := p.backend.GetInstance(ctx, cluster, a.Param(ParamInstanceName))
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	return &InstanceDetailView{Cluster: cluster, Instance: inst}, nil
}
