// Package apperr is the error taxonomy shared by services and handlers.
//
// Services return *Error values; handlers translate the Kind into an HTTP
// status. Causes are wrapped so errors.Is / errors.As keep working.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindPreconditionFailed   Kind = "precondition_failed"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindUnavailable          Kind = "unavailable"
	KindInternal             Kind = "internal"
)

// Error is a classified, user-presentable error.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool { return e.Kind == KindUnavailable }

// Validation builds a validation error. fields may be nil.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// PreconditionFailed covers illegal transitions and out-of-order operations.
func PreconditionFailed(msg string) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: msg}
}

func UnsupportedMediaType(msg string) *Error {
	return &Error{Kind: KindUnsupportedMediaType, Message: msg}
}

func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromStore classifies a storage error. what names the thing being
// accessed ("referral", "account") and is used in the NotFound message.
// Classified errors pass through unchanged.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return NotFound(what + " not found")
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return Unavailable("storage timed out; retry the request", err)
	case mongo.IsNetworkError(err):
		return Unavailable("storage unavailable; retry the request", err)
	default:
		return Internal("storage error", err)
	}
}
