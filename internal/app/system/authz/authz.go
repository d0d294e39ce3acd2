// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role groups used by route gates.
var (
	ReferralViewers   = []string{models.RoleRegistrar, models.RoleFinance, models.RoleAdmin}
	ReferralReviewers = []string{models.RoleRegistrar, models.RoleAdmin}
	PaymentRecorders  = []string{models.RoleFinance, models.RoleAdmin}
	AccountManagers   = []string{models.RoleAdmin}
)

// UserCtx returns the user's role (lowercased), email, Mongo ObjectID, and a
// found flag. If no user is present in context or the user ID is malformed,
// it returns "visitor", "", NilObjectID, false.
func UserCtx(r *http.Request) (role string, email string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// fail closed on a corrupt session
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Email, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	return HasAnyRole(r, models.RoleAdmin)
}

// CanViewReferrals reports whether the user may list every referral.
func CanViewReferrals(r *http.Request) bool {
	return HasAnyRole(r, ReferralViewers...)
}

// CanAdvanceStatus reports whether the user may move a referral through
// its status workflow.
func CanAdvanceStatus(r *http.Request) bool {
	return HasAnyRole(r, ReferralReviewers...)
}

// CanRecordPayment reports whether the user may record payment data.
func CanRecordPayment(r *http.Request) bool {
	return HasAnyRole(r, PaymentRecorders...)
}
