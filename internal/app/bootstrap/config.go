// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for ReferralHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: REFERRALHUB_MONGO_URI, REFERRALHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "referral_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "referralhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 24h, 720h)"},
	{Name: "session_inactive_threshold", Default: "30m", Desc: "Close server sessions idle this long"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "", Desc: "HS256 secret for bearer tokens (required)"},
	{Name: "jwt_issuer", Default: "referralhub", Desc: "Issuer claim for bearer tokens"},
	{Name: "jwt_ttl", Default: "24h", Desc: "Bearer token lifetime"},

	// Base URL for referral links and OAuth callbacks
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of this service"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of the admin account (promotes/creates on startup)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_referral", Default: "all", Desc: "Referral event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Storage timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document storage calls"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list and aggregate storage calls"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, REFERRALHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "REFERRALHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:               appValues.String("session_key"),
		SessionName:              appValues.String("session_name"),
		SessionDomain:            appValues.String("session_domain"),
		SessionMaxAge:            appValues.Duration("session_max_age", 30*24*time.Hour),
		SessionInactiveThreshold: appValues.Duration("session_inactive_threshold", 30*time.Minute),

		JWTSecret: appValues.String("jwt_secret"),
		JWTIssuer: appValues.String("jwt_issuer"),
		JWTTTL:    appValues.Duration("jwt_ttl", 24*time.Hour),

		BaseURL:    strings.TrimRight(appValues.String("base_url"), "/"),
		AdminEmail: appValues.String("admin_email"),

		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),
		AuditLogReferral: appValues.String("audit_log_referral"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The Mongo URI, base URL and JWT secret are checked here so bad
// deployments fail before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateBaseURL(appCfg.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(appCfg.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	for name, v := range map[string]string{
		"audit_log_auth":     appCfg.AuditLogAuth,
		"audit_log_admin":    appCfg.AuditLogAdmin,
		"audit_log_referral": appCfg.AuditLogReferral,
	} {
		switch v {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", name, v)
		}
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		logger.Warn("Google sign-in needs both google_client_id and google_client_secret; it stays disabled")
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL (got %q)", raw)
	}
	return nil
}
