// internal/app/features/referral/routes.go
package referral

import (
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /referral.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.HandleGet)
	r.Post("/{id}", h.HandleAttachStudentData)
	r.With(sm.RequireRole(authz.ReferralReviewers...)).Put("/{id}", h.HandleAdvanceStatus)
	return r
}
