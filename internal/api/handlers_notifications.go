// internal/api/handlers_notifications.go
package api

import (
	"net/http"
	"strconv"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, stderrors.NewValidationError("user is required"))
		return
	}

	q := models.ListQuery{
		UserID:     user,
		UnreadOnly: r.URL.Query().Get("unread_only") == "true",
		ReadOnly:   r.URL.Query().Get("read_only") == "true",
		Type:       r.URL.Query().Get("type"),
		Priority:   r.URL.Query().Get("priority"),
		Search:     r.URL.Query().Get("search"),
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		q.Page = page
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		q.Limit = limit
	}
	if q.Priority != "" && !models.ValidPriority(q.Priority) {
		writeError(w, stderrors.NewValidationError("unknown priority: "+q.Priority))
		return
	}

	result, err := s.notifications.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSearchNotifications runs a relevance-ranked full-text search over
// the user's notifications and returns matching ids, best match first. The
// caller resolves ids against its local state or the list endpoint.
func (s *Server) handleSearchNotifications(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	query := r.URL.Query().Get("q")
	if user == "" || query == "" {
		writeError(w, stderrors.NewValidationError("user and q are required"))
		return
	}
	if s.index == nil {
		writeError(w, stderrors.NewConnectionError("search index unavailable"))
		return
	}

	limit := 20
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	ids, err := s.index.Search(r.Context(), user, query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": ids})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, stderrors.NewValidationError("user is required"))
		return
	}

	count, err := s.notifications.UnreadCount(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UnreadCountResult{UnreadCount: count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	id := chi.URLParam(r, "id")
	if user == "" || id == "" {
		writeError(w, stderrors.NewValidationError("user and id are required"))
		return
	}

	if err := s.notifications.MarkRead(r.Context(), user, id, time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}

	s.pushReadState(r, user, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, stderrors.NewValidationError("user is required"))
		return
	}

	affected, err := s.notifications.MarkAllRead(r.Context(), user, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	s.pushCount(r, user)
	writeJSON(w, http.StatusOK, map[string]int64{"marked": affected})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	id := chi.URLParam(r, "id")
	if user == "" || id == "" {
		writeError(w, stderrors.NewValidationError("user and id are required"))
		return
	}

	if err := s.notifications.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	if s.index != nil {
		if err := s.index.Delete(r.Context(), id); err != nil {
			s.log.Warn("search index delete failed", map[string]interface{}{
				"notificationId": id,
				"error":          err.Error(),
			})
		}
	}

	s.pushCount(r, user)
	w.WriteHeader(http.StatusNoContent)
}

// pushReadState fans a read event plus the refreshed count out to the user's
// other live sessions, so every device converges without polling.
func (s *Server) pushReadState(r *http.Request, user, id string) {
	if env, err := models.NewEnvelope(models.EventNotificationRead, models.ReadEventPayload{ID: id}); err == nil {
		s.hub.BroadcastTo(user, env)
	}
	s.pushCount(r, user)
}

func (s *Server) pushCount(r *http.Request, user string) {
	count, err := s.notifications.UnreadCount(r.Context(), user)
	if err != nil {
		return
	}
	if env, err := models.NewEnvelope(models.EventNotificationCount, models.CountEventPayload{UnreadCount: count}); err == nil {
		s.hub.BroadcastTo(user, env)
	}
}
