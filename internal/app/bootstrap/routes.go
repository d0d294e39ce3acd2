// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	authgooglefeature "github.com/dalemusser/referralhub/internal/app/features/authgoogle"
	errorsfeature "github.com/dalemusser/referralhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/referralhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/referralhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/referralhub/internal/app/features/logout"
	notificationsfeature "github.com/dalemusser/referralhub/internal/app/features/notifications"
	profilefeature "github.com/dalemusser/referralhub/internal/app/features/profile"
	referralfeature "github.com/dalemusser/referralhub/internal/app/features/referral"
	referralsfeature "github.com/dalemusser/referralhub/internal/app/features/referrals"
	signupfeature "github.com/dalemusser/referralhub/internal/app/features/signup"
	userinfofeature "github.com/dalemusser/referralhub/internal/app/features/userinfo"
	usersfeature "github.com/dalemusser/referralhub/internal/app/features/users"
	userstore "github.com/dalemusser/referralhub/internal/app/store/users"
	"github.com/dalemusser/referralhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Runtime holds the shared services.
//
// Every request first passes LoadSessionUser, which resolves the caller from
// the bearer token or session cookie and re-reads the account, so role
// changes take effect on the next request. Role gates live in each
// feature's Routes.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	if rt == nil || rt.Identity == nil {
		return nil, fmt.Errorf("build handler: startup did not run")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(appCfg.JWTSecret, appCfg.JWTIssuer, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetTokenIssuer(tokens)
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))
	sessionMgr.SetSessionChecker(rt.Sessions)

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	signupHandler := signupfeature.NewHandler(rt.Identity, rt.AuditLog, errLog, logger)
	r.Mount("/signup", signupfeature.Routes(signupHandler))

	loginHandler := loginfeature.NewHandler(rt.Identity, rt.Sessions, sessionMgr, rt.LoginLimiter, rt.AuditLog, errLog, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, rt.Sessions, rt.AuditLog, logger)
	r.With(sessionMgr.RequireSignedIn).Mount("/logout", logoutfeature.Routes(logoutHandler))

	googleHandler := authgooglefeature.NewHandler(rt.Identity, loginHandler, rt.OAuthStates, rt.AuditLog, errLog,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	profileHandler := profilefeature.NewHandler(rt.Identity, rt.AuditLog, errLog, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	// Account administration
	usersHandler := usersfeature.NewHandler(rt.Identity, rt.AuditLog, errLog, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	// Referral lifecycle
	referralsHandler := referralsfeature.NewHandler(rt.Lifecycle, rt.AuditLog, errLog, logger)
	r.Mount("/referrals", referralsfeature.Routes(referralsHandler, sessionMgr))

	referralHandler := referralfeature.NewHandler(rt.Lifecycle, rt.AuditLog, errLog, logger)
	r.Mount("/referral", referralfeature.Routes(referralHandler, sessionMgr))

	// Notifications
	notificationsHandler := notificationsfeature.NewHandler(rt.Dispatcher, rt.Hub, errLog, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	return r, nil
}
