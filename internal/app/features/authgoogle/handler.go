// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/features/login"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/store/oauthstate"
	"github.com/dalemusser/referralhub/internal/app/store/sessions"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/auditlog"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultUserInfoURL is Google's OAuth2 userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// stateTTL bounds how long a consent round trip may take.
const stateTTL = 10 * time.Minute

// Handler handles Google OAuth authentication.
type Handler struct {
	Identity   *identity.Service
	Login      *login.Handler // opens the session once Google vouches for the email
	StateStore *oauthstate.Store
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://referrals.example.com/auth/google/callback"

	// Endpoint and UserInfoURL default to Google's; tests point them elsewhere.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	idsvc *identity.Service,
	loginHandler *login.Handler,
	stateStore *oauthstate.Store,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Identity:     idsvc,
		Login:        loginHandler,
		StateStore:   stateStore,
		AuditLog:     audit,
		ErrLog:       errLog,
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  DefaultUserInfoURL,
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.ErrLog.Write(w, r, apperr.Unavailable("Google sign-in is not configured.", nil))
		return
	}

	state, err := generateState()
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("could not generate OAuth state", err))
		return
	}

	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.StateStore.Save(ctx, state, returnURL, time.Now().UTC().Add(stateTTL)); err != nil {
		h.ErrLog.Write(w, r, apperr.FromStore(err, "oauth state"))
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOnline)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code, fetches the Google profile, finds or creates the         |
| account and opens a session.                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.ErrLog.Write(w, r, apperr.Unauthorized("Google sign-in was cancelled or denied."))
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.ErrLog.Write(w, r, apperr.Validation("Missing OAuth state.", map[string]string{"state": "Required."}))
		return
	}

	stateCtx, cancel := context.WithTimeout(ctx, timeouts.Short())
	returnURL, valid, err := h.StateStore.Validate(stateCtx, state)
	cancel()
	if err != nil {
		h.ErrLog.Write(w, r, apperr.FromStore(err, "oauth state"))
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.ErrLog.Write(w, r, apperr.Unauthorized("Sign-in link expired; start again."))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.ErrLog.Write(w, r, apperr.Validation("Missing OAuth code.", map[string]string{"code": "Required."}))
		return
	}

	exCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	token, err := h.oauth2Config().Exchange(exCtx, code)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Unavailable("Could not complete Google sign-in.", err))
		return
	}

	gu, err := h.fetchUserInfo(exCtx, token)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Unavailable("Could not read the Google profile.", err))
		return
	}
	if !gu.EmailVerified {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, gu.Email)
		h.ErrLog.Write(w, r, apperr.Forbidden("Google account email is not verified."))
		return
	}

	u, created, err := h.Identity.SignInWithGoogle(ctx, gu.Email, gu.Name)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if created {
		h.AuditLog.AccountCreated(ctx, r, u.ID, u.Email, models.AuthMethodGoogle)
	}

	if _, err := h.Login.StartSession(w, r, u, sessions.CreatedByGoogle); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, models.AuthMethodGoogle, u.Email)
	h.Log.Info("user signed in via Google",
		zap.String("user_id", u.ID.Hex()),
		zap.Bool("created", created))

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/"), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info: unexpected status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
