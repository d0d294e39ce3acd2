// internal/app/features/referrals/handler.go
package referrals

import (
	"net/http"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/lifecycle"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the referral collection: submission, listing, payment
// reconciliation and the dashboard aggregates.
type Handler struct {
	Lifecycle *lifecycle.Service
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(svc *lifecycle.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Lifecycle: svc, AuditLog: audit, ErrLog: errLog, Log: logger}
}

// paymentRequest is the PUT /referrals body. Version is optional.
type paymentRequest struct {
	lifecycle.PaymentInput
	Version *int64 `json:"version"`
}

func actorID(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}

// HandleSubmit handles POST /referrals.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.SubmitInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	res, err := h.Lifecycle.Submit(r.Context(), in)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.Log.Info("referral submitted", zap.String("referral_id", res.ReferralID))
	h.AuditLog.ReferralSubmitted(r.Context(), r, actorID(r), res.ReferralID, in.ReferrerEmail)
	httpjson.Write(w, http.StatusCreated, res)
}

// HandleList handles GET /referrals?status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Lifecycle.List(r.Context(), lifecycle.ListFilter{
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, nonNil(list))
}

// HandleMine handles GET /referrals/mine: the caller's own submissions.
func (h *Handler) HandleMine(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.Unauthorized("Sign in required."))
		return
	}
	list, err := h.Lifecycle.List(r.Context(), lifecycle.ListFilter{ReferrerEmail: u.Email})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, nonNil(list))
}

// HandleStats handles GET /referrals/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Lifecycle.Stats(r.Context())
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, st)
}

// HandleRecordPayment handles PUT /referrals and answers {"paymentKey": ...}.
func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	expected, err := httpjson.ExpectedVersion(r, req.Version)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	key, err := h.Lifecycle.RecordPayment(r.Context(), req.PaymentInput, expected)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.AuditLog.PaymentRecorded(r.Context(), r, actorID(r), req.ReferralID, req.PaymentStatus, req.PaymentMode)
	httpjson.Write(w, http.StatusOK, map[string]string{"paymentKey": key})
}

func nonNil(list []models.Referral) []models.Referral {
	if list == nil {
		return []models.Referral{}
	}
	return list
}
