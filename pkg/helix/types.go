package helix

import (
	"sort"
	"strconv"
)

// Record is the generic Helix ZNRecord document.
type Record struct {
	ID           string                       `json:"id"`
	SimpleFields map[string]string            `json:"simpleFields,omitempty"`
	ListFields   map[string][]string          `json:"listFields,omitempty"`
	MapFields    map[string]map[string]string `json:"mapFields,omitempty"`
}

// Simple returns a simple field, or "" when absent.
func (r *Record) Simple(key string) string {
	if r == nil || r.SimpleFields == nil {
		return ""
	}
	return r.SimpleFields[key]
}

// SimpleKeys returns the simple field names in sorted order.
func (r *Record) SimpleKeys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.SimpleFields))
	for k := range r.SimpleFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether the record carries no data at all.
func (r *Record) IsEmpty() bool {
	return r == nil || (r.ID == "" && len(r.SimpleFields) == 0 && len(r.ListFields) == 0 && len(r.MapFields) == 0)
}

// Cluster is the detail view of one cluster.
type Cluster struct {
	Name          string   `json:"id"`
	Controller    string   `json:"controller"`
	Paused        bool     `json:"paused"`
	Maintenance   bool     `json:"maintenance"`
	Resources     []string `json:"resources"`
	Instances     []string `json:"instances"`
	LiveInstances []string `json:"liveInstances"`
}

// Enabled is true unless the cluster has been paused (disabled).
func (c *Cluster) Enabled() bool {
	return !c.Paused
}

// ClusterCommand is an operation posted to a cluster.
type ClusterCommand string

const (
	CommandEnable                 ClusterCommand = "enable"
	CommandDisable                ClusterCommand = "disable"
	CommandEnableMaintenanceMode  ClusterCommand = "enableMaintenanceMode"
	CommandDisableMaintenanceMode ClusterCommand = "disableMaintenanceMode"
)

// ResourceSummary is one row of a cluster's resource list.
type ResourceSummary struct {
	Name string `json:"name"`
	// Alive is true when the controller has published an external view
	Alive bool `json:"alive"`
}

// Resource is the detail view of one resource.
type Resource struct {
	Name           string  `json:"id"`
	Cluster        string  `json:"cluster,omitempty"`
	ResourceConfig *Record `json:"resourceConfig,omitempty"`
	IdealState     *Record `json:"idealState,omitempty"`
	ExternalView   *Record `json:"externalView,omitempty"`
}

// StateModel returns the state model definition reference.
func (r *Resource) StateModel() string {
	return r.IdealState.Simple("STATE_MODEL_DEF_REF")
}

// RebalanceMode returns the ideal state's rebalance mode.
func (r *Resource) RebalanceMode() string {
	return r.IdealState.Simple("REBALANCE_MODE")
}

// Replicas returns the configured replica count as written by Helix ("3", "ANY_LIVEINSTANCE").
func (r *Resource) Replicas() string {
	return r.IdealState.Simple("REPLICAS")
}

// Partition is one partition with its ideal and current replica placement.
type Partition struct {
	Name     string            `json:"name"`
	Ideal    map[string]string `json:"ideal"`
	External map[string]string `json:"external"`
}

// Partitions merges ideal state and external view per partition, sorted by name.
func (r *Resource) Partitions() []Partition {
	names := make(map[string]struct{})
	if r.IdealState != nil {
		for p := range r.IdealState.MapFields {
			names[p] = struct{}{}
		}
		for p := range r.IdealState.ListFields {
			names[p] = struct{}{}
		}
	}
	if r.ExternalView != nil {
		for p := range r.ExternalView.MapFields {
			names[p] = struct{}{}
		}
	}

	parts := make([]Partition, 0, len(names))
	for name := range names {
		p := Partition{Name: name}
		if r.IdealState != nil {
			p.Ideal = r.IdealState.MapFields[name]
		}
		if r.ExternalView != nil {
			p.External = r.ExternalView.MapFields[name]
		}
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })
	return parts
}

// PartitionsOn filters partitions to those placed on one instance.
func (r *Resource) PartitionsOn(instance string) []Partition {
	var out []Partition
	for _, p := range r.Partitions() {
		if _, ok := p.External[instance]; ok {
			out = append(out, p)
			continue
		}
		if _, ok := p.Ideal[instance]; ok {
			out = append(out, p)
		}
	}
	return out
}

// InstanceSummary is one row of a cluster's instance list.
type InstanceSummary struct {
	Name    string `json:"name"`
	Online  bool   `json:"online"`
	Enabled bool   `json:"enabled"`
}

// Instance is the detail view of one participant.
type Instance struct {
	Name         string  `json:"id"`
	Cluster      string  `json:"cluster,omitempty"`
	Config       *Record `json:"config,omitempty"`
	LiveInstance *Record `json:"liveInstance,omitempty"`
}

// Enabled reads HELIX_ENABLED; a missing flag means enabled.
func (i *Instance) Enabled() bool {
	v := i.Config.Simple("HELIX_ENABLED")
	if v == "" {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

// Online is true when the participant has a live instance node.
func (i *Instance) Online() bool {
	return !i.LiveInstance.IsEmpty()
}

func (i *Instance) Host() string      { return i.Config.Simple("HELIX_HOST") }
func (i *Instance) Port() string      { return i.Config.Simple("HELIX_PORT") }
func (i *Instance) Version() string   { return i.LiveInstance.Simple("HELIX_VERSION") }
func (i *Instance) SessionID() string { return i.LiveInstance.Simple("SESSION_ID") }

// Controller describes the leader controller of a cluster.
type Controller struct {
	Cluster   string            `json:"cluster"`
	Name      string            `json:"controller"`
	Version   string            `json:"version,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}
