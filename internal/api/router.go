// internal/api/router.go
package api

import (
	"net/http"

	"notification-hub/internal/common/logger"
	"notification-hub/internal/dispatch"
	"notification-hub/internal/preference"
	"notification-hub/internal/realtime"
	"notification-hub/internal/storage"
	"notification-hub/internal/template"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server bundles the handlers and their dependencies.
type Server struct {
	notifications *storage.NotificationRepo
	templates     *storage.TemplateRepo
	index         *storage.NotificationIndex
	prefs         *preference.Service
	dispatcher    *dispatch.Dispatcher
	hub           *realtime.Hub
	renderer      *template.Renderer
	log           logger.Logger
}

// NewServer creates the API server. index may be nil; relevance search is
// then unavailable and reported as such.
func NewServer(
	notifications *storage.NotificationRepo,
	templates *storage.TemplateRepo,
	index *storage.NotificationIndex,
	prefs *preference.Service,
	dispatcher *dispatch.Dispatcher,
	hub *realtime.Hub,
	log logger.Logger,
) *Server {
	return &Server{
		notifications: notifications,
		templates:     templates,
		index:         index,
		prefs:         prefs,
		dispatcher:    dispatcher,
		hub:           hub,
		renderer:      template.NewRenderer(),
		log:           log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Routes builds the full route tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Get("/search", s.handleSearchNotifications)
			r.Get("/unread-count", s.handleUnreadCount)
			r.Post("/read-all", s.handleMarkAllRead)
			r.Post("/{id}/read", s.handleMarkRead)
			r.Delete("/{id}", s.handleDeleteNotification)
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", s.handleGetPreferences)
			r.Put("/", s.handleUpdatePreferences)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/preview", s.handlePreviewTemplate)
		})

		r.Post("/dispatch", s.handleDispatch)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
