// internal/app/features/referrals/routes.go
package referrals

import (
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /referrals.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleSubmit)
		pr.Get("/mine", h.HandleMine)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(authz.ReferralViewers...))
		pr.Get("/", h.HandleList)
		pr.Get("/stats", h.HandleStats)
	})

	r.With(sm.RequireRole(authz.PaymentRecorders...)).Put("/", h.HandleRecordPayment)

	return r
}
