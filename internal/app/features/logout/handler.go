// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/store/sessions"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Sessions   *sessions.Store
	AuditLog   *auditlog.Logger
}

// NewHandler builds a logout Handler. sessStore and audit may be nil.
func NewHandler(sessionMgr *auth.SessionManager, sessStore *sessions.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Sessions:   sessStore,
		AuditLog:   audit,
	}
}

// ServeLogout handles POST /logout. It expires the cookie and closes the
// server-side session, which also revokes bearer tokens bound to it.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	// There is no body for httpjson.Decode to check, so the content-type
	// rule is applied here. Bearer callers carry no ambient credential.
	if !httpjson.IsJSON(r) && auth.ExtractBearerToken(r) == "" {
		httpjson.Write(w, http.StatusUnsupportedMediaType, uierrors.Body{
			Error:   string(apperr.KindUnsupportedMediaType),
			Message: "Content-Type must be application/json.",
		})
		return
	}

	sessionID, err := h.SessionMgr.SignOut(w, r)
	if err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	u, signedIn := auth.CurrentUser(r)
	if signedIn && u.SessionID != "" {
		sessionID = u.SessionID
	}

	if h.Sessions != nil && sessionID != "" {
		if oid, err := primitive.ObjectIDFromHex(sessionID); err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
			if err := h.Sessions.Close(ctx, oid, sessions.EndLogout); err != nil {
				h.Log.Warn("logout: close session", zap.Error(err), zap.String("session_id", sessionID))
			}
			cancel()
		}
	}

	if signedIn {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}
