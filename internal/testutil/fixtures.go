package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an account. An empty password leaves the account
// without a password hash.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role, password string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		AuthMethod: models.AuthMethodPassword,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if password != "" {
		// MinCost keeps the suite fast
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			f.t.Fatalf("hash password: %v", err)
		}
		user.PasswordHash = string(hash)
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateStudent creates a Student account without a password.
func (f *Fixtures) CreateStudent(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleStudent, "")
}

// CreateAdmin creates an Admin account without a password.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleAdmin, "")
}

// CreateReferral inserts a referral in the given status at version 1.
func (f *Fixtures) CreateReferral(ctx context.Context, referrerEmail, studentName string, status models.ReferralStatus) models.Referral {
	f.t.Helper()

	now := time.Now().UTC()
	ref := models.Referral{
		ID:                   primitive.NewObjectID(),
		ReferralID:           uuid.NewString(),
		ReferrerName:         "Test Referrer",
		ReferrerEmail:        referrerEmail,
		ReferrerPhone:        "0200000000",
		ReferrerRelationship: "Friend",
		StudentName:          studentName,
		StudentEmail:         "student@example.com",
		StudentPhone:         "0240000000",
		AdmissionDetails:     "BSc Computer Science",
		ReferralDate:         now.Format("2006-01-02"),
		Status:               status,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if _, err := f.db.Collection("referrals").InsertOne(ctx, ref); err != nil {
		f.t.Fatalf("failed to create test referral: %v", err)
	}
	return ref
}

// CreateNotification inserts an unread notification for recipient.
func (f *Fixtures) CreateNotification(ctx context.Context, recipient, title string) models.Notification {
	f.t.Helper()

	n := models.Notification{
		ID:             primitive.NewObjectID(),
		RecipientEmail: recipient,
		Kind:           models.NotifyGeneral,
		Title:          title,
		Message:        title,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := f.db.Collection("notifications").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}
