// Package httpjson reads and writes JSON request and response bodies.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dalemusser/referralhub/internal/app/system/apperr"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Write sends v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Decode reads one JSON object from the request body into v. A body not
// declared as application/json is an UnsupportedMediaType error, which keeps
// cross-site form posts from reaching cookie-authenticated handlers. Other
// failures are validation errors.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	if !IsJSON(r) {
		return apperr.UnsupportedMediaType("Content-Type must be application/json.")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("Request body is required.", nil)
		case errors.As(err, &tooBig):
			return apperr.Validation("Request body is too large.", nil)
		default:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "Request body must be valid JSON.", Err: err}
		}
	}
	return nil
}

// IsJSON reports whether the request declares an application/json body.
func IsJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
