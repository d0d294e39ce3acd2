// internal/app/features/referral/handler.go
package referral

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/lifecycle"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/app/system/inputval"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves a single referral addressed by its public id. The id is a
// capability: anyone holding the link may read it and register the student.
type Handler struct {
	Lifecycle *lifecycle.Service
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(svc *lifecycle.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Lifecycle: svc, AuditLog: audit, ErrLog: errLog, Log: logger}
}

type studentDataRequest struct {
	lifecycle.StudentDataInput
	Version *int64 `json:"version"`
}

// statusRequest is the PUT body. referralStatus is accepted as an older
// spelling of status; status wins when both are sent.
type statusRequest struct {
	Status         string `json:"status" validate:"required,referralstatus" label:"Status"`
	ReferralStatus string `json:"referralStatus"`
	Version        *int64 `json:"version"`
}

func (req *statusRequest) resolve() {
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		req.Status = strings.TrimSpace(req.ReferralStatus)
	}
}

// writeReferral answers with the record and its version as ETag.
func writeReferral(w http.ResponseWriter, ref *models.Referral) {
	w.Header().Set("ETag", httpjson.ETag(ref.Version))
	httpjson.Write(w, http.StatusOK, ref)
}

// HandleGet handles GET /referral/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ref, err := h.Lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == httpjson.ETag(ref.Version) {
		w.Header().Set("ETag", match)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeReferral(w, ref)
}

// HandleAttachStudentData handles POST /referral/{id}: the student's
// registration form.
func (h *Handler) HandleAttachStudentData(w http.ResponseWriter, r *http.Request) {
	var req studentDataRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	expected, err := httpjson.ExpectedVersion(r, req.Version)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ref, err := h.Lifecycle.AttachStudentData(r.Context(), chi.URLParam(r, "id"), req.StudentDataInput, expected)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.AuditLog.StudentDataAttached(r.Context(), r, ref.ReferralID)
	writeReferral(w, ref)
}

// HandleAdvanceStatus handles PUT /referral/{id}.
func (h *Handler) HandleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	req.resolve()
	if res := inputval.Validate(req); res.HasErrors() {
		h.ErrLog.Write(w, r, apperr.Validation(res.First(), res.Fields()))
		return
	}
	expected, err := httpjson.ExpectedVersion(r, req.Version)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ch, err := h.Lifecycle.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, expected)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	if ch.Changed {
		var actor string
		if u, ok := auth.CurrentUser(r); ok {
			actor = u.ID
		}
		h.AuditLog.ReferralStatusChanged(r.Context(), r, actor, ch.Referral.ReferralID, string(ch.From), string(ch.Referral.Status))
	}
	writeReferral(w, ch.Referral)
}
