// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account roles. Stored exactly as written here.
const (
	RoleStudent   = "Student"
	RoleRegistrar = "Registrar"
	RoleFinance   = "Finance"
	RoleAdmin     = "Admin"
)

// Roles lists every assignable role.
var Roles = []string{RoleStudent, RoleRegistrar, RoleFinance, RoleAdmin}

// Auth methods recorded on an account.
const (
	AuthMethodPassword = "password"
	AuthMethodGoogle   = "google"
)

// User is an account. Email is the login identity and is matched exactly
// (after trimming), so "A@x.com" and "a@x.com" are different accounts.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"fullName"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	AuthMethod   string             `bson:"auth_method" json:"authMethod"`
	Role         string             `bson:"role" json:"role"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsValidRole reports whether role is one of the assignable roles.
func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
