// Package normalize cleans user-supplied values before they are validated
// or stored.
package normalize

import (
	"strings"

	"github.com/dalemusser/referralhub/internal/domain/models"
)

// Email trims surrounding whitespace. Case is preserved because account
// emails are matched exactly.
func Email(s string) string {
	return strings.TrimSpace(s)
}

// Name trims and collapses runs of internal whitespace to a single space.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text trims surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(s)
}

// Role maps any casing of a known role to its canonical form.
// Unknown roles return "".
func Role(s string) string {
	s = strings.TrimSpace(s)
	for _, r := range models.Roles {
		if strings.EqualFold(r, s) {
			return r
		}
	}
	return ""
}
