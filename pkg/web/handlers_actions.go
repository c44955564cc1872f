package web

import (
	"encoding/json"
	"net/http"

	"github.com/cloudbro-kube-ai/helix-console/pkg/console"
)

// ActionResponse is returned by every action endpoint. Cancelled and failed
// actions are not HTTP errors: the user already saw the dialog or error.
type ActionResponse struct {
	Outcome console.Outcome `json:"outcome"`
	Message string          `json:"message,omitempty"`
	Result  string          `json:"dialog_result,omitempty"`
}

func writeActionResult(w http.ResponseWriter, res console.Result) {
	resp := ActionResponse{Outcome: res.Outcome, Message: res.Message}
	if res.Dialog.Value != nil || res.Outcome == console.OutcomeCancelled {
		resp.Result = res.Dialog.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateCluster creates a cluster. Without a name in the body the
// user is asked for one through an input dialog.
func (s *Server) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "Invalid request body")
			return
		}
	}

	actions, actor := s.actions(w, r)
	writeActionResult(w, actions.CreateCluster(r.Context(), actor, req.Name))
}

// handleClusterAction runs delete|enable|disable|enable-maintenance|disable-maintenance.
func (s *Server) handleClusterAction(w http.ResponseWriter, r *http.Request) {
	name, op := r.PathValue("name"), r.PathValue("op")

	actions, actor := s.actions(w, r)
	ctx := r.Context()

	var res console.Result
	switch op {
	case "delete":
		res = actions.DeleteCluster(ctx, actor, name)
	case "enable":
		res = actions.SetClusterEnabled(ctx, actor, name, true)
	case "disable":
		res = actions.SetClusterEnabled(ctx, actor, name, false)
	case "enable-maintenance":
		res = actions.SetMaintenanceMode(ctx, actor, name, true)
	case "disable-maintenance":
		res = actions.SetMaintenanceMode(ctx, actor, name, false)
	default:
		NotFound(w, "Unknown cluster action: "+op)
		return
	}
	writeActionResult(w, res)
}

// handleInstanceAction enables or disables a participant.
func (s *Server) handleInstanceAction(w http.ResponseWriter, r *http.Request) {
	name, instance, op := r.PathValue("name"), r.PathValue("instance"), r.PathValue("op")

	var enabled bool
	switch op {
	case "enable":
		enabled = true
	case "disable":
	default:
		NotFound(w, "Unknown instance action: "+op)
		return
	}

	actions, actor := s.actions(w, r)
	writeActionResult(w, actions.SetInstanceEnabled(r.Context(), actor, name, instance, enabled))
}

// handleUpdateClusterConfig sets one simple field of the cluster config.
func (s *Server) handleUpdateClusterConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	if req.Key == "" {
		WriteError(w, NewAPIError(ErrCodeValidation, "key is required"))
		return
	}

	actions, actor := s.actions(w, r)
	writeActionResult(w, actions.UpdateClusterConfig(r.Context(), actor, r.PathValue("name"), req.Key, req.Value))
}
