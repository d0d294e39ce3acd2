// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /users. Every route is admin only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(authz.AccountManagers...))
	r.Get("/", h.HandleList)
	r.Put("/{userId}/role", h.HandleSetRole)
	return r
}
