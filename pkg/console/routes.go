// Package console defines the Helix console's route table, the resolvers
// that load entities before a page is shown, the page view models and the
// cluster mutations offered from those pages.
package console

import (
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
)

// Component identifiers.
const (
	ClusterDetail    = "ClusterDetail"
	ConfigDetail     = "ConfigDetail"
	InstanceList     = "InstanceList"
	ResourceList     = "ResourceList"
	ResourceDetail   = "ResourceDetail"
	ControllerDetail = "ControllerDetail"
	HistoryList      = "HistoryList"
	InstanceDetail   = "InstanceDetail"
)

// Route data keys.
const (
	DataCluster     = "cluster"
	DataResource    = "resource"
	DataForInstance = "forInstance"
)

// Route parameter names.
const (
	ParamName         = "name"
	ParamClusterName  = "cluster_name"
	ParamResourceName = "resource_name"
	ParamInstanceName = "instance_name"
)

// AppRoutes returns the console routing table with resolvers bound to backend.
func AppRoutes(backend Backend) []router.Route {
	return []router.Route{
		{
			Path:       "",
			RedirectTo: "/clusters",
			PathMatch:  router.PathMatchFull,
		},
		{
			// Cluster overview with no cluster selected
			Path:      "clusters",
			Component: ClusterDetail,
		},
		{
			Path:      "clusters/:" + ParamName,
			Component: ClusterDetail,
			Resolve: map[string]router.Resolver{
				DataCluster: &ClusterResolver{Backend: backend},
			},
			Children: []router.Route{
				{Path: "", RedirectTo: "resources", PathMatch: router.PathMatchFull},
				{Path: "configs", Component: ConfigDetail},
				{Path: "instances", Component: InstanceList},
				{Path: "resources", Component: ResourceList},
			},
		},
		{
			Path:      "clusters/:" + ParamClusterName + "/controller",
			Component: ControllerDetail,
			Children: []router.Route{
				{Path: "", RedirectTo: "history", PathMatch: router.PathMatchFull},
				{Path: "history", Component: HistoryList},
			},
		},
		{
			Path:      "clusters/:" + ParamClusterName + "/resources/:" + ParamResourceName,
			Component: ResourceDetail,
			Resolve: map[string]router.Resolver{
				DataResource: &ResourceResolver{Backend: backend},
			},
		},
		{
			Path:      "clusters/:" + ParamClusterName + "/instances/:" + ParamInstanceName,
			Component: InstanceDetail,
			Children: []router.Route{
				{Path: "", RedirectTo: "resources", PathMatch: router.PathMatchFull},
				{Path: "resources", Component: ResourceList, Data: map[string]any{DataForInstance: true}},
				{Path: "configs", Component: ConfigDetail},
				{Path: "history", Component: HistoryList},
			},
		},
	}
}

// NewRouter builds a router over AppRoutes.
func NewRouter(backend Backend) *router.Router {
	return router.MustNew(AppRoutes(backend))
}
