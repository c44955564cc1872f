package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudbro-kube-ai/helix-console/pkg/db"
	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
	"github.com/cloudbro-kube-ai/helix-console/pkg/notify"
)

// DefaultConfirmationTimeout bounds how long an action waits for the user.
const DefaultConfirmationTimeout = 5 * time.Minute

// Outcome is how a console action ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Result reports an action's outcome. Err is set only for OutcomeFailed.
type Result struct {
	Outcome Outcome             `json:"outcome"`
	Message string              `json:"message,omitempty"`
	Dialog  notify.DialogResult `json:"dialog"`
	Err     error               `json:"-"`
}

// Actor identifies who triggered an action, for the audit log.
type Actor struct {
	User      string
	Source    string
	ClientIP  string
	SessionID string
}

// AuditFunc records one audit entry. db.RecordAudit satisfies it.
type AuditFunc func(db.AuditEntry) error

// ActionOption configures Actions.
type ActionOption func(*Actions)

// WithAudit sets the audit sink.
func WithAudit(fn AuditFunc) ActionOption {
	return func(a *Actions) { a.audit = fn }
}

// WithConfirmationTimeout bounds confirmation and input dialogs.
func WithConfirmationTimeout(d time.Duration) ActionOption {
	return func(a *Actions) {
		if d > 0 {
			a.confirmTimeout = d
		}
	}
}

// Actions performs cluster mutations, asking the user first and reporting
// the result through the notifier.
type Actions struct {
	backend        Backend
	notifier       notify.Notifier
	audit          AuditFunc
	confirmTimeout time.Duration
}

// NewActions builds an action set bound to one session's notifier.
func NewActions(backend Backend, notifier notify.Notifier, opts ...ActionOption) *Actions {
	a := &Actions{
		backend:        backend,
		notifier:       notifier,
		audit:          db.RecordAudit,
		confirmTimeout: DefaultConfirmationTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type action struct {
	name     string
	resource string
	cluster  string
	instance string
	confirm  string
	success  string
	details  string
	kind     db.ActionType
	do       func(ctx context.Context) error
}

// CreateCluster creates a cluster. An empty name asks for one first.
func (a *Actions) CreateCluster(ctx context.Context, actor Actor, name string) Result {
	var dialog notify.DialogResult
	if name == "" {
		wctx, cancel := context.WithTimeout(ctx, a.confirmTimeout)
		defer cancel()
		f := a.notifier.ShowInput(wctx, "Create Cluster", "Enter the name of the new cluster", "cluster name")
		v, ok, err := f.Value(wctx)
		dialog, _ = f.Result()
		if err != nil || !ok {
			a.record(actor, action{name: "create_cluster", resource: "cluster"}, dialog, nil, true)
			return Result{Outcome: OutcomeCancelled, Dialog: dialog}
		}
		name = strings.TrimSpace(v)
	}
	if err := validateName(name); err != nil {
		a.notifier.ShowError(err.Error())
		a.record(actor, action{name: "create_cluster", resource: "cluster/" + name, cluster: name}, dialog, err, false)
		return Result{Outcome: OutcomeFailed, Message: err.Error(), Dialog: dialog, Err: err}
	}

	res := a.run(ctx, actor, action{
		name:     "create_cluster",
		resource: "cluster/" + name,
		cluster:  name,
		success:  fmt.Sprintf("Cluster %s created", name),
		do:       func(ctx context.Context) error { return a.backend.CreateCluster(ctx, name) },
	})
	res.Dialog = dialog
	return res
}

// DeleteCluster removes a cluster after confirmation.
func (a *Actions) DeleteCluster(ctx context.Context, actor Actor, name string) Result {
	return a.run(ctx, actor, action{
		name:     "delete_cluster",
		resource: "cluster/" + name,
		cluster:  name,
		confirm:  fmt.Sprintf("Are you sure you want to delete cluster %s? This cannot be undone.", name),
		success:  fmt.Sprintf("Cluster %s deleted", name),
		do:       func(ctx context.Context) error { return a.backend.DeleteCluster(ctx, name) },
	})
}

// SetClusterEnabled enables or disables (pauses) a cluster.
func (a *Actions) SetClusterEnabled(ctx context.Context, actor Actor, name string, enabled bool) Result {
	verb, cmd := "disable", helix.CommandDisable
	if enabled {
		verb, cmd = "enable", helix.CommandEnable
	}
	return a.run(ctx, actor, action{
		name:     verb + "_cluster",
		resource: "cluster/" + name,
		cluster:  name,
		confirm:  fmt.Sprintf("Are you sure you want to %s cluster %s?", verb, name),
		success:  fmt.Sprintf("Cluster %s %sd", name, verb),
		do:       func(ctx context.Context) error { return a.backend.ClusterCommand(ctx, name, cmd) },
	})
}

// SetMaintenanceMode turns a cluster's maintenance mode on or off.
func (a *Actions) SetMaintenanceMode(ctx context.Context, actor Actor, name string, on bool) Result {
	verb, cmd := "disable", helix.CommandDisableMaintenanceMode
	if on {
		verb, cmd = "enable", helix.CommandEnableMaintenanceMode
	}
	return a.run(ctx, actor, action{
		name:     verb + "_maintenance",
		resource: "cluster/" + name,
		cluster:  name,
		confirm:  fmt.Sprintf("Are you sure you want to %s maintenance mode for cluster %s?", verb, name),
		success:  fmt.Sprintf("Maintenance mode %sd for cluster %s", verb, name),
		do:       func(ctx context.Context) error { return a.backend.ClusterCommand(ctx, name, cmd) },
	})
}

// SetInstanceEnabled enables or disables a participant.
func (a *Actions) SetInstanceEnabled(ctx context.Context, actor Actor, cluster, instance string, enabled bool) Result {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	return a.run(ctx, actor, action{
		name:     verb + "_instance",
		resource: "cluster/" + cluster + "/instance/" + instance,
		cluster:  cluster,
		instance: instance,
		confirm:  fmt.Sprintf("Are you sure you want to %s instance %s?", verb, instance),
		success:  fmt.Sprintf("Instance %s %sd", instance, verb),
		do: func(ctx context.Context) error {
			return a.backend.SetInstanceEnabled(ctx, cluster, instance, enabled)
		},
	})
}

// UpdateClusterConfig sets one simple field of the cluster config.
func (a *Actions) UpdateClusterConfig(ctx context.Context, actor Actor, cluster, key, value string) Result {
	if strings.TrimSpace(key) == "" {
		err := errors.New("config key must not be empty")
		a.notifier.ShowError(err.Error())
		return Result{Outcome: OutcomeFailed, Message: err.Error(), Err: err}
	}
	return a.run(ctx, actor, action{
		name:     "update_cluster_config",
		resource: "cluster/" + cluster + "/configs",
		cluster:  cluster,
		kind:     db.ActionTypeConfig,
		details:  fmt.Sprintf("%s=%s", key, value),
		confirm:  fmt.Sprintf("Set %s to %q on cluster %s?", key, value, cluster),
		success:  fmt.Sprintf("Config %s updated", key),
		do: func(ctx context.Context) error {
			return a.backend.UpdateClusterConfig(ctx, cluster, helix.Record{
				ID:           cluster,
				SimpleFields: map[string]string{key: value},
			})
		},
	})
}

func (a *Actions) run(ctx context.Context, actor Actor, act action) Result {
	var dialog notify.DialogResult
	if act.confirm != "" {
		cctx, cancel := context.WithTimeout(ctx, a.confirmTimeout)
		f := a.notifier.ShowConfirmation(cctx, act.confirm)
		r, err := f.Wait(cctx)
		cancel()
		if err != nil {
			log.Debugf("[console] %s on %s not confirmed: %v", act.name, act.resource, err)
			r = notify.Dismissed
		}
		dialog = r
		if !r.Confirmed() {
			a.record(actor, act, dialog, nil, true)
			return Result{Outcome: OutcomeCancelled, Dialog: dialog}
		}
	}

	if err := act.do(ctx); err != nil {
		msg := ErrorMessage(err)
		log.Warnf("[console] %s on %s failed: %v", act.name, act.resource, err)
		a.notifier.ShowError(msg)
		a.record(actor, act, dialog, err, false)
		return Result{Outcome: OutcomeFailed, Message: msg, Dialog: dialog, Err: err}
	}

	a.notifier.ShowSnackBar(act.success)
	a.record(actor, act, dialog, nil, false)
	log.Infof("[console] %s: %s by %s", act.name, act.resource, actor.User)
	return Result{Outcome: OutcomeSucceeded, Message: act.success, Dialog: dialog}
}

func (a *Actions) record(actor Actor, act action, dialog notify.DialogResult, err error, cancelled bool) {
	if a.audit == nil {
		return
	}
	details := act.details
	if cancelled {
		details = strings.TrimSpace("cancelled " + details)
	}
	entry := db.AuditEntry{
		User:          actor.User,
		Action:        act.name,
		Resource:      act.resource,
		Details:       details,
		ActionType:    act.kind,
		HelixCluster:  act.cluster,
		HelixInstance: act.instance,
		Source:        actor.Source,
		ClientIP:      actor.ClientIP,
		SessionID:     actor.SessionID,
		Success:       err == nil && !cancelled,
	}
	if act.confirm != "" || cancelled || dialog.Value != nil {
		entry.DialogResult = dialog.String()
	}
	if err != nil {
		entry.ErrorMsg = err.Error()
	} else if cancelled {
		entry.ErrorMsg = "not confirmed"
	}
	if aerr := a.audit(entry); aerr != nil {
		log.Errorf("[console] audit %s: %v", act.name, aerr)
	}
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("cluster name must not be empty")
	case strings.ContainsAny(name, "/?#% "):
		return fmt.Errorf("cluster name %q contains invalid characters", name)
	}
	return nil
}

// ErrorMessage turns a backend error into text for an error dialog.
func ErrorMessage(err error) string {
	var serr *helix.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The Helix service did not answer in time. Please try again."
	case helix.IsNotFound(err):
		return "The requested entity no longer exists."
	case errors.As(err, &serr):
		if serr.Body != "" {
			return fmt.Sprintf("Helix rejected the request (%d %s): %s", serr.StatusCode, http.StatusText(serr.StatusCode), serr.Body)
		}
		return fmt.Sprintf("Helix rejected the request (%d %s).", serr.StatusCode, http.StatusText(serr.StatusCode))
	default:
		return fmt.Sprintf("Unable to reach the Helix service: %v", err)
	}
}
