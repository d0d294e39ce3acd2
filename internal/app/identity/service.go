// Package identity manages accounts: signup, credential checks, roles and
// profiles.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	userstore "github.com/dalemusser/referralhub/internal/app/store/users"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/inputval"
	"github.com/dalemusser/referralhub/internal/app/system/normalize"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the hashing cost for new passwords.
const DefaultBcryptCost = 12

// msgBadCredentials is shared by every authentication failure so callers
// cannot tell an unknown email from a wrong password.
const msgBadCredentials = "Invalid email or password."

// ErrUnknownEmail and ErrWrongPassword are wrapped inside the Unauthorized
// error so the login handler can audit the precise reason.
var (
	ErrUnknownEmail  = errors.New("no account with this email")
	ErrWrongPassword = errors.New("password mismatch")
)

// Service implements the account operations.
type Service struct {
	users *userstore.Store
	sink  EventSink
	log   *zap.Logger
	cost  int
}

// New builds a Service. sink may be nil.
func New(users *userstore.Store, sink EventSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, sink: sink, log: logger, cost: DefaultBcryptCost}
}

// SetBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *Service) SetBcryptCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.cost = cost
	}
}

// SignupInput is the self-registration form.
type SignupInput struct {
	FullName        string `json:"fullName" validate:"required,max=200" label:"Full name"`
	Email           string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password        string `json:"password" validate:"required,strongpassword" label:"Password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password" label:"Confirm password"`
}

// Signup creates a Student account with a password.
func (s *Service) Signup(ctx context.Context, in SignupInput) (models.User, error) {
	in.FullName = normalize.Name(in.FullName)
	in.Email = normalize.Email(in.Email)
	if res := inputval.Validate(in); res.HasErrors() {
		return models.User{}, apperr.Validation(res.First(), res.Fields())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, apperr.Internal("could not hash password", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := s.users.Create(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: string(hash),
		AuthMethod:   models.AuthMethodPassword,
		Role:         models.RoleStudent,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return models.User{}, apperr.Conflict("An account with this email already exists.")
		}
		return models.User{}, apperr.FromStore(err, "account")
	}

	s.log.Info("account created", zap.String("user_id", u.ID.Hex()), zap.String("auth_method", u.AuthMethod))
	s.publish(ctx, u)
	return u, nil
}

// Authenticate checks an email and password. Every failure is the same
// Unauthorized error; errors.Is distinguishes ErrUnknownEmail from
// ErrWrongPassword. On a wrong password the account is returned alongside
// the error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required.", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: msgBadCredentials, Err: ErrUnknownEmail}
	}
	if err != nil {
		return nil, apperr.FromStore(err, "account")
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return u, &apperr.Error{Kind: apperr.KindUnauthorized, Message: msgBadCredentials, Err: ErrWrongPassword}
	}
	return u, nil
}

// SignInWithGoogle finds the account for a verified Google email or
// creates a Student account for it. created reports a new account.
func (s *Service) SignInWithGoogle(ctx context.Context, email, fullName string) (u *models.User, created bool, err error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, false, apperr.Validation("Google did not return an email address.", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, apperr.FromStore(err, "account")
	}

	if strings.TrimSpace(fullName) == "" {
		fullName = email
	}
	nu, err := s.users.Create(ctx, models.User{
		FullName:   fullName,
		Email:      email,
		AuthMethod: models.AuthMethodGoogle,
		Role:       models.RoleStudent,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// lost a race with a concurrent first sign-in
		u, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, false, apperr.FromStore(err, "account")
		}
		return u, false, nil
	}
	if err != nil {
		return nil, false, apperr.FromStore(err, "account")
	}

	s.log.Info("account created", zap.String("user_id", nu.ID.Hex()), zap.String("auth_method", nu.AuthMethod))
	s.publish(ctx, nu)
	return &nu, true, nil
}

// UpdateRole sets the role of accountID and returns the previous role.
// Role names are matched case-insensitively.
func (s *Service) UpdateRole(ctx context.Context, accountID, role string) (oldRole string, err error) {
	canonical := normalize.Role(role)
	if canonical == "" {
		return "", apperr.Validation("Role must be one of: "+strings.Join(models.Roles, ", ")+".",
			map[string]string{"role": "Unknown role."})
	}
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(accountID))
	if err != nil {
		return "", apperr.NotFound("account not found")
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := s.users.GetByID(ctx, oid)
	if err != nil {
		return "", apperr.FromStore(err, "account")
	}
	if err := s.users.UpdateRole(ctx, oid, canonical); err != nil {
		return "", apperr.FromStore(err, "account")
	}
	s.log.Info("role updated",
		zap.String("user_id", oid.Hex()),
		zap.String("old_role", u.Role),
		zap.String("new_role", canonical),
	)
	return u.Role, nil
}

// ListAccounts returns every account without password hashes.
func (s *Service) ListAccounts(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "accounts")
	}
	return users, nil
}

// Profile returns the account for accountID.
func (s *Service) Profile(ctx context.Context, accountID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, apperr.NotFound("account not found")
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := s.users.GetByID(ctx, oid)
	if err != nil {
		return nil, apperr.FromStore(err, "account")
	}
	return u, nil
}

// ProfileInput carries the optional profile changes.
type ProfileInput struct {
	FullName        *string `json:"fullName" validate:"omitempty,max=200" label:"Full name"`
	Password        *string `json:"password" validate:"omitempty,strongpassword" label:"Password"`
	ConfirmPassword *string `json:"confirmPassword" label:"Confirm password"`
}

// UpdateProfile changes the caller's name and/or password. passwordChanged
// reports whether a new hash was stored.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, in ProfileInput) (u *models.User, passwordChanged bool, err error) {
	if in.FullName != nil {
		name := normalize.Name(*in.FullName)
		if name == "" {
			return nil, false, apperr.Validation("Full name cannot be blank.", map[string]string{"fullName": "Full name cannot be blank."})
		}
		in.FullName = &name
	}
	if in.Password != nil && *in.Password == "" {
		in.Password = nil
	}
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, false, apperr.Validation(res.First(), res.Fields())
	}
	if in.Password != nil && (in.ConfirmPassword == nil || *in.ConfirmPassword != *in.Password) {
		return nil, false, apperr.Validation("Passwords do not match.", map[string]string{"confirmPassword": "Passwords do not match."})
	}

	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, false, apperr.NotFound("account not found")
	}

	var upd userstore.ProfileUpdate
	upd.FullName = in.FullName
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return nil, false, apperr.Internal("could not hash password", err)
		}
		h := string(hash)
		upd.PasswordHash = &h
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err = s.users.UpdateProfile(ctx, oid, upd)
	if err != nil {
		return nil, false, apperr.FromStore(err, "account")
	}
	return u, upd.PasswordHash != nil, nil
}

// Admin provisioning outcomes.
const (
	AdminCreated   = "created"
	AdminPromoted  = "promoted"
	AdminUnchanged = "unchanged"
)

// EnsureAdmin makes sure the account for email exists with role Admin.
// A new account signs in with Google since it has no password.
func (s *Service) EnsureAdmin(ctx context.Context, email string) (*models.User, string, error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, "", apperr.Validation("admin email is empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && u.Role == models.RoleAdmin:
		return u, AdminUnchanged, nil
	case err == nil:
		if err := s.users.UpdateRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return nil, "", apperr.FromStore(err, "account")
		}
		u.Role = models.RoleAdmin
		return u, AdminPromoted, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, "", apperr.FromStore(err, "account")
	}

	nu, err := s.users.Create(ctx, models.User{
		FullName:   "Administrator",
		Email:      email,
		AuthMethod: models.AuthMethodGoogle,
		Role:       models.RoleAdmin,
	})
	if err != nil {
		return nil, "", apperr.FromStore(err, "account")
	}
	return &nu, AdminCreated, nil
}

func (s *Service) publish(ctx context.Context, u models.User) {
	if s.sink == nil {
		return
	}
	ev := Event{
		Kind:       EventAccountCreated,
		UserID:     u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		AuthMethod: u.AuthMethod,
		At:         time.Now().UTC(),
	}
	if err := s.sink.HandleAccountEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("account event not delivered", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
}
