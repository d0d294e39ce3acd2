// internal/app/system/auth/session.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	sessionIDKey = "session_id"
)

// SessionUser is the signed-in account as seen by handlers. It is rebuilt
// from the database on every request, so role changes apply immediately.
type SessionUser struct {
	ID        string
	Name      string
	Email     string
	Role      string
	SessionID string // server-side session record backing this request
}

// UserFetcher loads a fresh SessionUser by id. It returns nil when the
// account no longer exists.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionChecker reports whether a server-side session is still open.
type SessionChecker interface {
	IsActive(ctx context.Context, sessionID string) bool
}

// SessionManager authenticates requests from a signed cookie or a bearer
// token, and enforces sign-in and role gates.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	checker SessionChecker
	tokens  *TokenIssuer
	log     *zap.Logger
}

// NewSessionManager builds the cookie store. In production (secure=true)
// cookies are Secure with SameSite=None; otherwise SameSite=Lax so local
// http development works.
func NewSessionManager(key, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if key == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(key)))
	}
	if name == "" {
		name = "referralhub-session"
	}

	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetUserFetcher installs the loader used by LoadSessionUser.
func (m *SessionManager) SetUserFetcher(f UserFetcher) { m.fetcher = f }

// SetSessionChecker installs the server-side session check.
func (m *SessionManager) SetSessionChecker(c SessionChecker) { m.checker = c }

// SetTokenIssuer enables bearer-token authentication.
func (m *SessionManager) SetTokenIssuer(t *TokenIssuer) { m.tokens = t }

// Tokens returns the bearer-token issuer, or nil.
func (m *SessionManager) Tokens() *TokenIssuer { return m.tokens }

// Store exposes the cookie store.
func (m *SessionManager) Store() *sessions.CookieStore { return m.store }

// GetSession returns the request's cookie session. On a decode error a
// fresh session is still returned alongside the error.
func (m *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, m.name)
}

// SignIn writes an authenticated cookie bound to the server-side session.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, userID, sessionID string) error {
	sess, err := m.GetSession(r)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			m.log.Warn("session cookie invalid, using fresh session",
				zap.Error(err), zap.String("user_id", userID))
		} else {
			m.log.Error("session store error during sign-in, using fresh session",
				zap.Error(err), zap.String("user_id", userID))
		}
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID
	sess.Values[sessionIDKey] = sessionID
	return sess.Save(r, w)
}

// SignOut expires the cookie and returns the server-side session id it
// referenced (or "" if none).
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := m.GetSession(r)
	if err != nil {
		m.log.Warn("session decode failed during sign-out", zap.Error(err))
	}
	sessionID, _ := sess.Values[sessionIDKey].(string)

	opts := *m.store.Options
	opts.MaxAge = -1
	sess.Options = &opts
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return sessionID, sess.Save(r, w)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadSessionUser puts the current user into the request context when the
// request carries a valid bearer token or session cookie whose server-side
// session is still open. Anonymous requests pass through untouched.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, sessionID, ok := m.credentials(r)
		if !ok || m.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}
		if m.checker != nil && !m.checker.IsActive(r.Context(), sessionID) {
			next.ServeHTTP(w, r)
			return
		}
		u := m.fetcher.FetchUser(r.Context(), userID)
		if u == nil {
			next.ServeHTTP(w, r)
			return
		}
		u.SessionID = sessionID
		next.ServeHTTP(w, withUser(r, u))
	})
}

// credentials extracts the user and session ids from the bearer token, or
// failing that from the cookie.
func (m *SessionManager) credentials(r *http.Request) (userID, sessionID string, ok bool) {
	if raw := ExtractBearerToken(r); raw != "" {
		if m.tokens == nil {
			return "", "", false
		}
		claims, err := m.tokens.Parse(raw)
		if err != nil {
			m.log.Debug("bearer token rejected", zap.Error(err))
			return "", "", false
		}
		return claims.Subject, claims.SessionID, true
	}

	sess, err := m.GetSession(r)
	if err != nil {
		return "", "", false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return "", "", false
	}
	userID, _ = sess.Values[userIDKey].(string)
	sessionID, _ = sess.Values[sessionIDKey].(string)
	return userID, sessionID, userID != ""
}

// RequireSignedIn rejects anonymous requests with 401.
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Sign in required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects anonymous requests with 401 and signed-in users
// outside the allowed roles with 403. Role comparison ignores case.
func (m *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Sign in required.")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				writeAuthError(w, http.StatusForbidden, "forbidden", "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": msg})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Context helpers                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the signed-in user and whether one was found.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context. Tests use it to bypass
// the cookie and token paths.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
