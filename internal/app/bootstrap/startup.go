// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/lifecycle"
	"github.com/dalemusser/referralhub/internal/app/notify"
	"github.com/dalemusser/referralhub/internal/app/store/audit"
	notificationstore "github.com/dalemusser/referralhub/internal/app/store/notifications"
	"github.com/dalemusser/referralhub/internal/app/store/oauthstate"
	referralstore "github.com/dalemusser/referralhub/internal/app/store/referrals"
	"github.com/dalemusser/referralhub/internal/app/store/sessions"
	userstore "github.com/dalemusser/referralhub/internal/app/store/users"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/ratelimit"
	"github.com/dalemusser/referralhub/internal/app/system/tasks"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"github.com/dalemusser/referralhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runtime holds the long-lived services shared by the handlers.
type Runtime struct {
	Sessions     *sessions.Store
	OAuthStates  *oauthstate.Store
	AuditLog     *auditlog.Logger
	Identity     *identity.Service
	Lifecycle    *lifecycle.Service
	Dispatcher   *notify.Dispatcher
	Hub          *notify.Hub
	LoginLimiter *ratelimit.LoginLimiter
	Runner       *workers.Runner
}

// newRuntime builds the services over db. The dispatcher receives both
// referral and account events; the hub pushes what it stores.
func newRuntime(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) *Runtime {
	hub := notify.NewHub(logger)
	dispatcher := notify.NewDispatcher(notificationstore.New(db), hub, logger)

	rt := &Runtime{
		Sessions:    sessions.New(db),
		OAuthStates: oauthstate.New(db),
		AuditLog: auditlog.New(audit.New(db), logger, auditlog.Config{
			Auth:     appCfg.AuditLogAuth,
			Admin:    appCfg.AuditLogAdmin,
			Referral: appCfg.AuditLogReferral,
		}),
		Identity:     identity.New(userstore.New(db), dispatcher, logger),
		Lifecycle:    lifecycle.New(referralstore.New(db), dispatcher, appCfg.BaseURL, logger),
		Dispatcher:   dispatcher,
		Hub:          hub,
		LoginLimiter: ratelimit.NewLoginLimiter(),
	}

	threshold := appCfg.SessionInactiveThreshold
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	rt.Runner = workers.NewRunner(logger,
		tasks.InactiveSessionCleanupJob(rt.Sessions, logger, threshold),
		tasks.OAuthStateCleanupJob(rt.OAuthStates, logger),
		tasks.RateLimitSweepJob(logger, rt.LoginLimiter),
	)
	return rt
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return fmt.Errorf("startup: runtime not allocated")
	}

	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
	})

	rt := newRuntime(deps.MongoDatabase, appCfg, logger)

	if err := ensureAdmin(ctx, rt, appCfg.AdminEmail, logger); err != nil {
		return err
	}

	go rt.Hub.Run()
	rt.Runner.Start()

	*deps.Runtime = *rt
	return nil
}

// ensureAdmin creates or promotes the configured admin account. A blank
// email skips the step.
func ensureAdmin(ctx context.Context, rt *Runtime, email string, logger *zap.Logger) error {
	if strings.TrimSpace(email) == "" {
		logger.Debug("admin_email not set; skipping admin provisioning")
		return nil
	}
	u, action, err := rt.Identity.EnsureAdmin(ctx, email)
	if err != nil {
		return fmt.Errorf("ensure admin %s: %w", email, err)
	}
	if action != identity.AdminUnchanged {
		rt.AuditLog.AdminEnsured(ctx, u.ID, u.Email, action)
	}
	logger.Info("admin account ensured", zap.String("email", u.Email), zap.String("action", action))
	return nil
}
