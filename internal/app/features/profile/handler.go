// internal/app/features/profile/handler.go
package profile

import (
	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// Handler owns the signed-in user's profile endpoints.
type Handler struct {
	Identity *identity.Service
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs a Handler bound to the identity service.
func NewHandler(idsvc *identity.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Identity: idsvc,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}
