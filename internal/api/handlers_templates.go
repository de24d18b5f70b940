// internal/api/handlers_templates.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/common/validation"
	"notification-hub/internal/models"
	"notification-hub/internal/template"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if templates == nil {
		templates = []models.NotificationTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := decodeTemplate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	if err := s.templates.Create(r.Context(), tmpl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

// handleUpdateTemplate writes the next version; existing versions stay
// untouched so in-flight renders are unaffected.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := decodeTemplate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tmpl.ID = chi.URLParam(r, "id")
	tmpl.UpdatedAt = time.Now().UTC()

	if err := s.templates.Update(r.Context(), tmpl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewTemplate renders a stored template against caller-supplied
// variables and reports authoring warnings alongside the rendered text.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, stderrors.NewValidationError("malformed preview request: "+err.Error()))
		return
	}

	rendered := s.renderer.Render(tmpl, body.Variables)
	warnings := template.Validate(tmpl, body.Variables)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rendered": rendered,
		"warnings": warnings,
	})
}

func decodeTemplate(r *http.Request) (*models.NotificationTemplate, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, stderrors.NewValidationError("malformed template: " + err.Error())
	}
	if err := validation.ValidateTemplate(raw); err != nil {
		return nil, stderrors.NewTemplateValidationFailed(err.Error())
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, stderrors.NewValidationError(err.Error())
	}
	var tmpl models.NotificationTemplate
	if err := json.Unmarshal(encoded, &tmpl); err != nil {
		return nil, stderrors.NewValidationError("malformed template: " + err.Error())
	}

	for _, v := range tmpl.Variables {
		if !models.ValidVarType(v.Type) {
			return nil, stderrors.NewTemplateValidationFailed("unknown variable type: " + v.Type)
		}
	}
	return &tmpl, nil
}
