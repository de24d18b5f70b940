// internal/api/handlers_dispatch.go
package api

import (
	"encoding/json"
	"net/http"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/dispatch"
)

// handleDispatch accepts a dispatch request and fans it out across channels.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, stderrors.NewValidationError("malformed dispatch request: "+err.Error()))
		return
	}
	if req.TemplateID == "" {
		writeError(w, stderrors.NewValidationError("templateId is required"))
		return
	}
	if len(req.Recipients) == 0 {
		writeError(w, stderrors.NewValidationError("at least one recipient is required"))
		return
	}

	results, err := s.dispatcher.Dispatch(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
