// internal/app/features/notifications/handler.go
package notifications

import (
	"net/http"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/notify"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's notification inbox and live stream.
type Handler struct {
	Dispatcher *notify.Dispatcher
	Hub        *notify.Hub
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(d *notify.Dispatcher, hub *notify.Hub, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Dispatcher: d, Hub: hub, ErrLog: errLog, Log: logger}
}

func (h *Handler) recipient(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.Unauthorized("Sign in required."))
		return "", false
	}
	return u.Email, true
}

// HandleList handles GET /notifications, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	list, err := h.Dispatcher.List(r.Context(), email)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	httpjson.Write(w, http.StatusOK, list)
}

// HandleUnreadCount handles GET /notifications/unread-count.
func (h *Handler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	n, err := h.Dispatcher.UnreadCount(r.Context(), email)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]int64{"unread": n})
}

// HandleMarkRead handles PUT /notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	if err := h.Dispatcher.MarkRead(r.Context(), chi.URLParam(r, "id"), email); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkAllRead handles PUT /notifications/read-all.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	n, err := h.Dispatcher.MarkAllRead(r.Context(), email)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]int64{"updated": n})
}

// HandleStream handles GET /notifications/ws.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	if h.Hub == nil {
		h.ErrLog.Write(w, r, apperr.Unavailable("Live notifications are not available.", nil))
		return
	}
	h.Hub.ServeWS(w, r, email)
}
