// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/store/sessions"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/app/system/normalize"
	"github.com/dalemusser/referralhub/internal/app/system/ratelimit"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Identity   *identity.Service
	Sessions   *sessions.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(
	idsvc *identity.Service,
	sessStore *sessions.Store,
	sessionMgr *auth.SessionManager,
	limiter *ratelimit.LoginLimiter,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Identity:   idsvc,
		Sessions:   sessStore,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		AuditLog:   audit,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is the account summary returned to clients.
type UserView struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// NewUserView builds the summary of u.
func NewUserView(u *models.User) UserView {
	return UserView{ID: u.ID.Hex(), FullName: u.FullName, Email: u.Email, Role: u.Role}
}

// Response is the body of a successful sign-in.
type Response struct {
	User      UserView   `json:"user"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HandleLoginPost handles POST /login.
//
// On success the response carries a session cookie and, when token issuing
// is configured, a bearer token bound to the same server-side session.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	email := normalize.Email(req.Email)

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailedRateLimit(r.Context(), r, email, reason)
			w.Header().Set("Retry-After", "60")
			httpjson.Write(w, http.StatusTooManyRequests, uierrors.Body{Error: "rate_limited", Message: reason})
			return
		}
	}

	u, err := h.Identity.Authenticate(r.Context(), email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnknownEmail):
			h.AuditLog.LoginFailedUserNotFound(r.Context(), r, email)
		case errors.Is(err, identity.ErrWrongPassword) && u != nil:
			h.AuditLog.LoginFailedWrongPassword(r.Context(), r, u.ID, email)
		}
		h.ErrLog.Write(w, r, err)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}

	resp, err := h.StartSession(w, r, u, sessions.CreatedByLogin)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.LoginSuccess(r.Context(), r, u.ID, models.AuthMethodPassword, u.Email)
	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))
	httpjson.Write(w, http.StatusOK, resp)
}

// StartSession opens a server-side session for u, writes the cookie and
// issues a bearer token. The Google callback shares it.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request, u *models.User, createdBy string) (Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sess, err := h.Sessions.Create(ctx, u.ID, ratelimit.ClientIP(r), r.UserAgent(), createdBy)
	if err != nil {
		return Response{}, apperr.FromStore(err, "session")
	}
	if err := h.SessionMgr.SignIn(w, r, u.ID.Hex(), sess.ID.Hex()); err != nil {
		return Response{}, apperr.Internal("could not save session cookie", err)
	}

	resp := Response{User: NewUserView(u)}
	if tokens := h.SessionMgr.Tokens(); tokens != nil {
		tok, exp, err := tokens.Issue(u.ID.Hex(), sess.ID.Hex(), u.Role)
		if err != nil {
			return Response{}, apperr.Internal("could not issue token", err)
		}
		resp.Token = tok
		resp.ExpiresAt = &exp
	}
	return resp, nil
}
