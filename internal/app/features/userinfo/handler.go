// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"

	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
)

// Handler serves the identity behind the current request.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type userInfo struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
}

// ServeUserInfo returns the caller's authentication status and identity.
// Anonymous callers get 200 with isAuthenticated=false so clients can probe
// without handling an error.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		httpjson.Write(w, http.StatusOK, userInfo{})
		return
	}

	httpjson.Write(w, http.StatusOK, userInfo{
		IsAuthenticated: true,
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
	})
}
