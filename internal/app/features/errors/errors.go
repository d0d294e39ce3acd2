// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"go.uber.org/zap"
)

// Body is the JSON error response.
type Body struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorLogger writes error responses and logs the ones that indicate a
// server-side failure.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// Write classifies err and sends the matching status and body.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	body := Body{Error: string(kind), Message: "An internal error occurred."}
	if ae, ok := asAppErr(err); ok {
		if kind != apperr.KindInternal {
			body.Message = ae.Message
		}
		body.Fields = ae.Fields
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}

	switch {
	case status >= 500:
		e.log.Error("request failed", fields...)
	default:
		e.log.Debug("request rejected", fields...)
	}

	if kind == apperr.KindUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(1))
	}
	httpjson.Write(w, status, body)
}

// LogServerError logs err and answers 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	httpjson.Write(w, http.StatusInternalServerError, Body{Error: string(apperr.KindInternal), Message: userMsg})
}

// LogBadRequest answers 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Debug(msg, zap.String("path", r.URL.Path), zap.Error(err))
	httpjson.Write(w, http.StatusBadRequest, Body{Error: string(apperr.KindValidation), Message: userMsg})
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusNotFound, Body{Error: string(apperr.KindNotFound), Message: "No such endpoint."})
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusMethodNotAllowed, Body{Error: "method_not_allowed", Message: "Method not allowed."})
}

func asAppErr(err error) (*apperr.Error, bool) {
	var ae *apperr.Error
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
