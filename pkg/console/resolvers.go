package console

import (
	"context"
	"fmt"

	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
)

// Backend is the subset of the Helix admin API the console uses.
// *helix.Client implements it.
type Backend interface {
	ListClusters(ctx context.Context) ([]string, error)
	GetCluster(ctx context.Context, name string) (*helix.Cluster, error)
	CreateCluster(ctx context.Context, name string) error
	DeleteCluster(ctx context.Context, name string) error
	ClusterCommand(ctx context.Context, name string, cmd helix.ClusterCommand) error
	GetClusterConfig(ctx context.Context, name string) (*helix.Record, error)
	UpdateClusterConfig(ctx context.Context, name string, rec helix.Record) error

	ListResources(ctx context.Context, cluster string) ([]helix.ResourceSummary, error)
	GetResource(ctx context.Context, cluster, name string) (*helix.Resource, error)

	ListInstances(ctx context.Context, cluster string) ([]helix.InstanceSummary, error)
	GetInstance(ctx context.Context, cluster, name string) (*helix.Instance, error)
	SetInstanceEnabled(ctx context.Context, cluster, name string, enabled bool) error
	ListInstanceResources(ctx context.Context, cluster, instance string) ([]string, error)
	GetInstanceConfig(ctx context.Context, cluster, instance string) (*helix.Record, error)
	GetInstanceHistory(ctx context.Context, cluster, instance string) ([]helix.HistoryEntry, error)

	GetController(ctx context.Context, cluster string) (*helix.Controller, error)
	GetControllerHistory(ctx context.Context, cluster string) ([]helix.HistoryEntry, error)
}

var _ Backend = (*helix.Client)(nil)

// ClusterResolver loads the cluster named by the "name" parameter.
type ClusterResolver struct {
	Backend Backend
}

func (r *ClusterResolver) Resolve(ctx context.Context, params router.Params) (any, error) {
	name := params[ParamName]
	if name == "" {
		return nil, fmt.Errorf("missing %q parameter: %w", ParamName, helix.ErrNotFound)
	}
	cluster, err := r.Backend.GetCluster(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load cluster %s: %w", name, err)
	}
	return cluster, nil
}

// ResourceResolver loads the resource named by "cluster_name" and "resource_name".
type ResourceResolver struct {
	Backend Backend
}

func (r *ResourceResolver) Resolve(ctx context.Context, params router.Params) (any, error) {
	cluster, name := params[ParamClusterName], params[ParamResourceName]
	if cluster == "" || name == "" {
		return nil, fmt.Errorf("missing cluster or resource parameter: %w", helix.ErrNotFound)
	}
	res, err := r.Backend.GetResource(ctx, cluster, name)
	if err != nil {
		return nil, fmt.Errorf("load resource %s/%s: %w", cluster, name, err)
	}
	return res, nil
}

// ResolvedCluster returns the cluster a ClusterResolver put on the route.
func ResolvedCluster(a *router.ActivatedRoute) (*helix.Cluster, bool) {
	v, ok := a.Lookup(DataCluster)
	if !ok {
		return nil, false
	}
	c, ok := v.(*helix.Cluster)
	return c, ok
}

// ResolvedResource returns the resource a ResourceResolver put on the route.
func ResolvedResource(a *router.ActivatedRoute) (*helix.Resource, bool) {
	v, ok := a.Lookup(DataResource)
	if !ok {
		return nil, false
	}
	r, ok := v.(*helix.Resource)
	return r, ok
}
