// internal/app/features/profile/profile.go
package profile

import (
	"net/http"

	"github.com/dalemusser/referralhub/internal/app/features/login"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"go.uber.org/zap"
)

// profileView is the caller's own account.
type profileView struct {
	login.UserView
	AuthMethod string `json:"authMethod"`
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.Unauthorized("Sign in required."))
		return
	}

	u, err := h.Identity.Profile(r.Context(), cu.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, profileView{UserView: login.NewUserView(u), AuthMethod: u.AuthMethod})
}

// HandleUpdateProfile handles PUT /profile. Omitted fields are left alone;
// a password change requires a matching confirmPassword.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.Unauthorized("Sign in required."))
		return
	}

	var in identity.ProfileInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	u, pwChanged, err := h.Identity.UpdateProfile(r.Context(), cu.ID, in)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	if pwChanged {
		h.Log.Info("password changed", zap.String("user_id", cu.ID))
		h.AuditLog.PasswordChanged(r.Context(), r, cu.ID)
	}
	httpjson.Write(w, http.StatusOK, profileView{UserView: login.NewUserView(u), AuthMethod: u.AuthMethod})
}
