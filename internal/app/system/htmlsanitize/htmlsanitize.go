// Package htmlsanitize strips or restricts markup in free-text fields.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// PlainText removes all markup and returns trimmed text. Entities produced
// by the policy are unescaped so stored text reads naturally.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Sanitize keeps safe formatting markup and drops scripts, event handlers
// and javascript: links.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugc.Sanitize(s)
}
