// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /notifications.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.HandleList)
	r.Get("/unread-count", h.HandleUnreadCount)
	r.Put("/read-all", h.HandleMarkAllRead)
	r.Put("/{id}/read", h.HandleMarkRead)
	r.Get("/ws", h.HandleStream)
	return r
}
