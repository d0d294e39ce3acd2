// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/referralhub/internal/app/store/audit"
	"github.com/dalemusser/referralhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination settings per category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration. Each field is one of
// "all", "db", "log" or "off"; empty means "all".
type Config struct {
	// Auth covers sign-in, sign-out, signup and password events.
	Auth string
	// Admin covers role changes and admin provisioning.
	Admin string
	// Referral covers referral submissions, status moves and payments.
	Referral string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func requestMeta(r *http.Request) (ip, ua string) {
	if r == nil {
		return "", ""
	}
	return ratelimit.ClientIP(r), r.UserAgent()
}

func oidPtr(hex string) *primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &oid
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ReferralID != "" {
		fields = append(fields, zap.String("referral_id", event.ReferralID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryAdmin:
		s = l.config.Admin
	case audit.CategoryReferral:
		s = l.config.Referral
	}
	if s == "" {
		return All
	}
	return s
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.setting(event.Category)
	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) auth(ctx context.Context, r *http.Request, e audit.Event) {
	e.Category = audit.CategoryAuth
	e.IP, e.UserAgent = requestMeta(r)
	l.Log(ctx, e)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Authentication events                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod, email string) {
	l.auth(ctx, r, audit.Event{
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"auth_method": authMethod, "email": email},
	})
}

// LoginFailedUserNotFound logs a failed login due to an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.auth(ctx, r, audit.Event{
		EventType:     audit.EventLoginFailedUserNotFound,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": attemptedEmail},
	})
}

// LoginFailedWrongPassword logs a failed login due to a wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.auth(ctx, r, audit.Event{
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		FailureReason: "wrong password",
		Details:       map[string]string{"email": email},
	})
}

// LoginFailedRateLimit logs a login rejected by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email, limitType string) {
	l.auth(ctx, r, audit.Event{
		EventType:     audit.EventLoginFailedRateLimit,
		FailureReason: "rate limit exceeded",
		Details:       map[string]string{"email": email, "limit_type": limitType},
	})
}

// Logout logs a user logout. userID is the hex id from the session user.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.auth(ctx, r, audit.Event{
		EventType: audit.EventLogout,
		UserID:    oidPtr(userID),
		Success:   true,
	})
}

// AccountCreated logs a new account from signup or first Google sign-in.
func (l *Logger) AccountCreated(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, authMethod string) {
	l.auth(ctx, r, audit.Event{
		EventType: audit.EventAccountCreated,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"email": email, "auth_method": authMethod},
	})
}

// PasswordChanged logs a password change from the profile page.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID string) {
	l.auth(ctx, r, audit.Event{
		EventType: audit.EventPasswordChanged,
		UserID:    oidPtr(userID),
		Success:   true,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Admin events                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// RoleChanged logs an admin changing an account's role.
func (l *Logger) RoleChanged(ctx context.Context, r *http.Request, actorID string, userID primitive.ObjectID, oldRole, newRole string) {
	ip, ua := requestMeta(r)
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventRoleChanged,
		UserID:    &userID,
		ActorID:   oidPtr(actorID),
		IP:        ip,
		UserAgent: ua,
		Success:   true,
		Details:   map[string]string{"old_role": oldRole, "new_role": newRole},
	})
}

// AdminEnsured logs the startup admin provisioning. action is "created",
// "promoted" or "unchanged".
func (l *Logger) AdminEnsured(ctx context.Context, userID primitive.ObjectID, email, action string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAdminEnsured,
		UserID:    &userID,
		IP:        "system",
		Success:   true,
		Details:   map[string]string{"email": email, "action": action},
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Referral events                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (l *Logger) referral(ctx context.Context, r *http.Request, actorID, referralID, eventType string, details map[string]string) {
	ip, ua := requestMeta(r)
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryReferral,
		EventType:  eventType,
		ActorID:    oidPtr(actorID),
		ReferralID: referralID,
		IP:         ip,
		UserAgent:  ua,
		Success:    true,
		Details:    details,
	})
}

// ReferralSubmitted logs a new referral. actorID may be empty.
func (l *Logger) ReferralSubmitted(ctx context.Context, r *http.Request, actorID, referralID, referrerEmail string) {
	l.referral(ctx, r, actorID, referralID, audit.EventReferralSubmitted,
		map[string]string{"referrer_email": referrerEmail})
}

// StudentDataAttached logs a registration form submitted through the
// referral link. The submitter is anonymous.
func (l *Logger) StudentDataAttached(ctx context.Context, r *http.Request, referralID string) {
	l.referral(ctx, r, "", referralID, audit.EventStudentDataAttached, nil)
}

// ReferralStatusChanged logs a status move.
func (l *Logger) ReferralStatusChanged(ctx context.Context, r *http.Request, actorID, referralID, from, to string) {
	l.referral(ctx, r, actorID, referralID, audit.EventReferralStatusChanged,
		map[string]string{"from": from, "to": to})
}

// PaymentRecorded logs a payment update. The payment key itself is not logged.
func (l *Logger) PaymentRecorded(ctx context.Context, r *http.Request, actorID, referralID, paymentStatus, paymentMode string) {
	l.referral(ctx, r, actorID, referralID, audit.EventPaymentRecorded,
		map[string]string{"payment_status": paymentStatus, "payment_mode": paymentMode})
}
