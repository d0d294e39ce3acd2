// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig is passed to most lifecycle hooks, so anything needed during
// startup, request handling, or shutdown lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey               string        // Secret key for signing session cookies (must be strong in production)
	SessionName              string        // Cookie name for sessions (default: referralhub-session)
	SessionDomain            string        // Cookie domain (blank means current host)
	SessionMaxAge            time.Duration // Cookie lifetime
	SessionInactiveThreshold time.Duration // Server sessions idle this long are closed

	// Bearer tokens
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// BaseURL prefixes referral links and the Google callback,
	// e.g. "https://referrals.example.com".
	BaseURL string

	// AdminEmail is created or promoted to Admin on every startup. Blank skips it.
	AdminEmail string

	// Audit logging destinations: all, db, log, off
	AuditLogAuth     string
	AuditLogAdmin    string
	AuditLogReferral string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Storage timeouts; zero keeps the built-in defaults.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
}
