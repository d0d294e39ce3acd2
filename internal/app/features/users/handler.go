// internal/app/features/users/handler.go
package users

import (
	"net/http"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/app/system/normalize"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves account administration.
type Handler struct {
	Identity *identity.Service
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(idsvc *identity.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Identity: idsvc, AuditLog: audit, ErrLog: errLog, Log: logger}
}

type roleRequest struct {
	Role string `json:"role"`
}

type roleResponse struct {
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	PreviousRole string `json:"previousRole"`
}

// HandleList handles GET /users.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Identity.ListAccounts(r.Context())
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if list == nil {
		list = []models.User{}
	}
	httpjson.Write(w, http.StatusOK, list)
}

// HandleSetRole handles PUT /users/{userId}/role.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	userID := chi.URLParam(r, "userId")
	old, err := h.Identity.UpdateRole(r.Context(), userID, req.Role)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	role := normalize.Role(req.Role)

	var actor string
	if u, ok := auth.CurrentUser(r); ok {
		actor = u.ID
	}
	// UpdateRole already rejected malformed ids
	oid, _ := primitive.ObjectIDFromHex(userID)
	h.AuditLog.RoleChanged(r.Context(), r, actor, oid, old, role)

	httpjson.Write(w, http.StatusOK, roleResponse{UserID: userID, Role: role, PreviousRole: old})
}
