// internal/api/response.go

// Package api exposes the hub's REST and websocket surface over chi.
package api

import (
	"encoding/json"
	"net/http"

	stderrors "notification-hub/internal/common/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Details   string `json:"details,omitempty"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the shared error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	stdErr := stderrors.Normalize(err)

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case stderrors.ErrCodeValidation, stderrors.ErrCodeTemplateValidationFailed:
		status = http.StatusBadRequest
	case stderrors.ErrCodeConflict:
		status = http.StatusConflict
	case stderrors.ErrCodeTemplateNotFound:
		status = http.StatusNotFound
	case stderrors.ErrCodeConnection, stderrors.ErrCodeDatabaseConnectionFailed:
		status = http.StatusServiceUnavailable
	}

	var body errorBody
	body.Error.Code = string(stdErr.Code)
	body.Error.Message = stdErr.Message
	body.Error.Details = stdErr.Details
	body.Error.Retryable = stdErr.Retryable
	writeJSON(w, status, body)
}

// userID extracts the acting user from the request. Auth middleware upstream
// is expected to have validated it; the query parameter keeps local tooling
// simple.
func userID(r *http.Request) string {
	return r.URL.Query().Get("user")
}
