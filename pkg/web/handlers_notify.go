package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloudbro-kube-ai/helix-console/pkg/notify"
)

// DialogCloseRequest is the body of POST /api/dialogs/{id}. A missing or
// null result closes the dialog without a value.
type DialogCloseRequest struct {
	Result *bool  `json:"result"`
	Value  string `json:"value,omitempty"`
}

// handleDialogClose resolves the dialog's pending future
func (s *Server) handleDialogClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req DialogCloseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "Invalid request body")
			return
		}
	}

	_, hub, ok := s.existingSession(r)
	if !ok {
		NotFound(w, "Dialog not found or expired")
		return
	}

	err := hub.CloseDialog(id, notify.DialogResult{Value: req.Result, Input: req.Value})
	if errors.Is(err, notify.ErrUnknownDialog) {
		NotFound(w, "Dialog not found or expired")
		return
	}
	if err != nil {
		WriteError(w, NewAPIError(ErrCodeInternalError, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "closed",
		"id":     id,
		"result": notify.DialogResult{Value: req.Result}.String(),
	})
}

// handleSnackBarDismiss dismisses a snackbar through its action button
func (s *Server) handleSnackBarDismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, hub, ok := s.existingSession(r)
	if !ok {
		NotFound(w, "Snackbar not found or already dismissed")
		return
	}

	err := hub.DismissSnackBar(id)
	if errors.Is(err, notify.ErrUnknownSnackBar) {
		NotFound(w, "Snackbar not found or already dismissed")
		return
	}
	if err != nil {
		WriteError(w, NewAPIError(ErrCodeInternalError, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed", "id": id})
}
