package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/referralhub/internal/app/identity"
	userstore "github.com/dalemusser/referralhub/internal/app/store/users"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/referralhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type accountSink struct {
	events []identity.Event
}

func (a *accountSink) HandleAccountEvent(_ context.Context, ev identity.Event) error {
	a.events = append(a.events, ev)
	return nil
}

func newService(t *testing.T) (*identity.Service, *accountSink, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	sink := &accountSink{}
	svc := identity.New(userstore.New(db), sink, zap.NewNop())
	svc.SetBcryptCost(bcrypt.MinCost)
	return svc, sink, testutil.NewFixtures(t, db)
}

func signup(email string) identity.SignupInput {
	return identity.SignupInput{
		FullName:        "Sam Student",
		Email:           email,
		Password:        "Str0ng!Pass",
		ConfirmPassword: "Str0ng!Pass",
	}
}

func TestSignup(t *testing.T) {
	svc, sink, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := svc.Signup(ctx, signup(" sam@example.com "))
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Role != models.RoleStudent {
		t.Errorf("Role = %q, want Student", u.Role)
	}
	if u.Email != "sam@example.com" {
		t.Errorf("Email = %q, want trimmed", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "Str0ng!Pass" {
		t.Error("expected a bcrypt hash")
	}
	if len(sink.events) != 1 || sink.events[0].Kind != identity.EventAccountCreated {
		t.Errorf("events = %+v", sink.events)
	}
}

func TestSignup_Duplicate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := svc.Signup(ctx, signup("dup@example.com")); err != nil {
		t.Fatalf("first Signup: %v", err)
	}
	_, err := svc.Signup(ctx, signup("dup@example.com"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name  string
		mod   func(*identity.SignupInput)
		field string
	}{
		{"bad email", func(in *identity.SignupInput) { in.Email = "not-an-email" }, "email"},
		{"weak password", func(in *identity.SignupInput) {
			in.Password = "password"
			in.ConfirmPassword = "password"
		}, "password"},
		{"mismatch", func(in *identity.SignupInput) { in.ConfirmPassword = "Other!Pass1" }, "confirmPassword"},
		{"blank name", func(in *identity.SignupInput) { in.FullName = "   " }, "fullName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := signup("v@example.com")
			tt.mod(&in)
			_, err := svc.Signup(ctx, in)
			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
				t.Fatalf("got %v, want validation", err)
			}
			if ae.Fields[tt.field] == "" {
				t.Errorf("expected message for %s, got %v", tt.field, ae.Fields)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Reg Istrar", "reg@example.com", models.RoleRegistrar, "Str0ng!Pass")

	u, err := svc.Authenticate(ctx, "reg@example.com", "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Role != models.RoleRegistrar {
		t.Errorf("Role = %q", u.Role)
	}

	_, err = svc.Authenticate(ctx, "reg@example.com", "wrong")
	if !apperr.Is(err, apperr.KindUnauthorized) || !errors.Is(err, identity.ErrWrongPassword) {
		t.Errorf("wrong password: got %v", err)
	}

	_, err2 := svc.Authenticate(ctx, "nobody@example.com", "Str0ng!Pass")
	if !apperr.Is(err2, apperr.KindUnauthorized) || !errors.Is(err2, identity.ErrUnknownEmail) {
		t.Errorf("unknown email: got %v", err2)
	}

	var a, b *apperr.Error
	errors.As(err, &a)
	errors.As(err2, &b)
	if a.Message != b.Message {
		t.Errorf("messages differ: %q vs %q", a.Message, b.Message)
	}

	// emails match exactly
	if _, err := svc.Authenticate(ctx, "REG@example.com", "Str0ng!Pass"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("case-changed email: got %v", err)
	}
}

func TestSignInWithGoogle(t *testing.T) {
	svc, sink, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, created, err := svc.SignInWithGoogle(ctx, "g@example.com", "Gee User")
	if err != nil {
		t.Fatalf("SignInWithGoogle: %v", err)
	}
	if !created || u.AuthMethod != models.AuthMethodGoogle || u.Role != models.RoleStudent {
		t.Errorf("created=%v user=%+v", created, u)
	}

	again, created, err := svc.SignInWithGoogle(ctx, "g@example.com", "Gee User")
	if err != nil || created || again.ID != u.ID {
		t.Errorf("second sign-in: created=%v err=%v", created, err)
	}
	if len(sink.events) != 1 {
		t.Errorf("expected one account event, got %d", len(sink.events))
	}

	fx.CreateUser(ctx, "Fin", "fin@example.com", models.RoleFinance, "")
	existing, created, _ := svc.SignInWithGoogle(ctx, "fin@example.com", "Fin")
	if created || existing.Role != models.RoleFinance {
		t.Errorf("existing account should be reused: %+v", existing)
	}
}

func TestUpdateRole(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateStudent(ctx, "Stu", "stu@example.com")

	old, err := svc.UpdateRole(ctx, u.ID.Hex(), "finance")
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if old != models.RoleStudent {
		t.Errorf("old role = %q", old)
	}
	got, _ := svc.Profile(ctx, u.ID.Hex())
	if got.Role != models.RoleFinance {
		t.Errorf("role = %q, want Finance", got.Role)
	}

	if _, err := svc.UpdateRole(ctx, u.ID.Hex(), "Janitor"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("invalid role: got %v", err)
	}
	if _, err := svc.UpdateRole(ctx, "000000000000000000000000", "Admin"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown id: got %v", err)
	}
	if _, err := svc.UpdateRole(ctx, "nope", "Admin"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("malformed id: got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Old Name", "p@example.com", models.RoleStudent, "Str0ng!Pass")

	name := "  New   Name "
	got, changed, err := svc.UpdateProfile(ctx, u.ID.Hex(), identity.ProfileInput{FullName: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if changed || got.FullName != "New Name" {
		t.Errorf("changed=%v name=%q", changed, got.FullName)
	}

	pw, confirm := "N3w!Password", "N3w!Password"
	_, changed, err = svc.UpdateProfile(ctx, u.ID.Hex(), identity.ProfileInput{Password: &pw, ConfirmPassword: &confirm})
	if err != nil || !changed {
		t.Fatalf("password change: changed=%v err=%v", changed, err)
	}
	if _, err := svc.Authenticate(ctx, "p@example.com", pw); err != nil {
		t.Errorf("new password should authenticate: %v", err)
	}

	weak := "weak"
	if _, _, err := svc.UpdateProfile(ctx, u.ID.Hex(), identity.ProfileInput{Password: &weak, ConfirmPassword: &weak}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("weak password: got %v", err)
	}
	other := "Oth3r!Password"
	if _, _, err := svc.UpdateProfile(ctx, u.ID.Hex(), identity.ProfileInput{Password: &pw, ConfirmPassword: &other}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("mismatch: got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, action, err := svc.EnsureAdmin(ctx, "boss@example.com")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if action != identity.AdminCreated || u.Role != models.RoleAdmin {
		t.Errorf("action=%q role=%q", action, u.Role)
	}

	if _, action, _ = svc.EnsureAdmin(ctx, "boss@example.com"); action != identity.AdminUnchanged {
		t.Errorf("second call: action=%q", action)
	}

	fx.CreateStudent(ctx, "Later Admin", "later@example.com")
	u, action, _ = svc.EnsureAdmin(ctx, "later@example.com")
	if action != identity.AdminPromoted || u.Role != models.RoleAdmin {
		t.Errorf("promote: action=%q role=%q", action, u.Role)
	}
}

func TestListAccounts(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Zed", "z@example.com", models.RoleStudent, "Str0ng!Pass")
	fx.CreateUser(ctx, "Amy", "a@example.com", models.RoleAdmin, "Str0ng!Pass")

	users, err := svc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(users) != 2 || users[0].FullName != "Amy" {
		t.Fatalf("unexpected order: %+v", users)
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Error("password hash must not be returned")
		}
	}
}
