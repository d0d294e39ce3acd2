// internal/app/features/signup/handler.go
package signup

import (
	"net/http"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Identity *identity.Service
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(idsvc *identity.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Identity: idsvc, AuditLog: audit, ErrLog: errLog, Log: logger}
}

// HandleSignup handles POST /signup and answers 201 {"userId": ...}.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in identity.SignupInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	u, err := h.Identity.Signup(r.Context(), in)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.AuditLog.AccountCreated(r.Context(), r, u.ID, u.Email, models.AuthMethodPassword)
	httpjson.Write(w, http.StatusCreated, map[string]string{"userId": u.ID.Hex()})
}
