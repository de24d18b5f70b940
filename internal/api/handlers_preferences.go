// internal/api/handlers_preferences.go
package api

import (
	"encoding/json"
	"net/http"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, stderrors.NewValidationError("user is required"))
		return
	}

	prefs, err := s.prefs.Get(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handleUpdatePreferences merges a partial update and returns the canonical
// merged record, which the client adopts wholesale.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, stderrors.NewValidationError("user is required"))
		return
	}

	var update models.PreferenceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, stderrors.NewValidationError("malformed preference update: "+err.Error()))
		return
	}

	merged, err := s.prefs.Update(r.Context(), user, &update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}
