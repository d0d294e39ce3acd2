package httpjson

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/referralhub/internal/app/system/apperr"
)

// ETag formats a record version as a strong entity tag.
func ETag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// ExpectedVersion returns the version the client based its change on.
// A version in the body wins over an If-Match header. nil means the client
// did not ask for a version check.
func ExpectedVersion(r *http.Request, bodyVersion *int64) (*int64, error) {
	if bodyVersion != nil {
		return bodyVersion, nil
	}
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return nil, apperr.Validation("If-Match must carry a referral version.", map[string]string{"If-Match": "Invalid version."})
	}
	return &v, nil
}
