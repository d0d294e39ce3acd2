package authgoogle_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/referralhub/internal/app/features/authgoogle"
	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/features/login"
	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/store/oauthstate"
	"github.com/dalemusser/referralhub/internal/app/store/sessions"
	userstore "github.com/dalemusser/referralhub/internal/app/store/users"
	"github.com/dalemusser/referralhub/internal/app/system/ratelimit"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/referralhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type env struct {
	h      *authgoogle.Handler
	states *oauthstate.Store
	users  *userstore.Store
}

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, email string, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "g-123",
			"email":          email,
			"verified_email": verified,
			"name":           "Google Person",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newEnv(t *testing.T, clientID string, google *httptest.Server) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	errLog := uierrors.NewErrorLogger(logger)
	users := userstore.New(db)
	idsvc := identity.New(users, nil, logger)
	states := oauthstate.New(db)

	lh := login.NewHandler(idsvc, sessions.New(db), testutil.NewSessionManager(t), ratelimit.NewLoginLimiter(), nil, errLog, logger)
	h := authgoogle.NewHandler(idsvc, lh, states, nil, errLog, clientID, "test-client-secret", "http://localhost:8080", logger)
	if google != nil {
		h.Endpoint = oauth2.Endpoint{
			AuthURL:   google.URL + "/auth",
			TokenURL:  google.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}
		h.UserInfoURL = google.URL + "/userinfo"
	}
	return env{h: h, states: states, users: users}
}

func TestIsConfigured(t *testing.T) {
	if !newEnv(t, "test-client-id", nil).h.IsConfigured() {
		t.Error("IsConfigured() should return true with client ID and secret")
	}
	if newEnv(t, "", nil).h.IsConfigured() {
		t.Error("IsConfigured() should return false without a client ID")
	}
}

func TestServeLogin_NotConfigured(t *testing.T) {
	e := newEnv(t, "", nil)
	rec := testutil.NewRecorder()
	e.h.ServeLogin(rec, testutil.NewRequest("GET", "/auth/google"))
	rec.AssertStatus(t, http.StatusServiceUnavailable)
}

func TestServeLogin_RedirectsToGoogle(t *testing.T) {
	e := newEnv(t, "test-client-id", nil)
	rec := testutil.NewRecorder()
	e.h.ServeLogin(rec, testutil.NewRequest("GET", "/auth/google?return=/referrals/mine"))

	rec.AssertStatus(t, http.StatusTemporaryRedirect)
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Errorf("Location = %q, want Google consent URL", loc)
	}
	if !strings.Contains(loc, "client_id=test-client-id") || !strings.Contains(loc, "state=") {
		t.Errorf("Location missing client_id or state: %q", loc)
	}
}

func TestServeCallback_Rejections(t *testing.T) {
	e := newEnv(t, "test-client-id", nil)
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"google error", "/auth/google/callback?error=access_denied", http.StatusUnauthorized},
		{"missing state", "/auth/google/callback?code=abc", http.StatusBadRequest},
		{"unknown state", "/auth/google/callback?state=never-issued&code=abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.ServeCallback(rec, testutil.NewRequest("GET", tt.target))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestServeCallback_CreatesAccountAndSession(t *testing.T) {
	e := newEnv(t, "test-client-id", fakeGoogle(t, "new.person@example.com", true))
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := e.states.Save(ctx, "state-1", "/referrals/mine", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save state: %v", err)
	}

	rec := testutil.NewRecorder()
	e.h.ServeCallback(rec, testutil.NewRequest("GET", "/auth/google/callback?state=state-1&code=abc"))

	rec.AssertStatus(t, http.StatusSeeOther)
	u, err := e.users.GetByEmail(ctx, "new.person@example.com")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if u.Role != models.RoleStudent || u.AuthMethod != models.AuthMethodGoogle {
		t.Errorf("got role %q auth %q", u.Role, u.AuthMethod)
	}
	var sawCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" && c.Value != "" {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Error("expected a session cookie")
	}

	// state is single use
	again := testutil.NewRecorder()
	e.h.ServeCallback(again, testutil.NewRequest("GET", "/auth/google/callback?state=state-1&code=abc"))
	again.AssertStatus(t, http.StatusUnauthorized)
}

func TestServeCallback_UnverifiedEmail(t *testing.T) {
	e := newEnv(t, "test-client-id", fakeGoogle(t, "unverified@example.com", false))
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := e.states.Save(ctx, "state-2", "", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save state: %v", err)
	}

	rec := testutil.NewRecorder()
	e.h.ServeCallback(rec, testutil.NewRequest("GET", "/auth/google/callback?state=state-2&code=abc"))
	rec.AssertStatus(t, http.StatusForbidden)
	if _, err := e.users.GetByEmail(ctx, "unverified@example.com"); err == nil {
		t.Error("unverified email must not create an account")
	}
}

func TestRoutes(t *testing.T) {
	e := newEnv(t, "", nil)
	r := authgoogle.Routes(e.h)
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest("GET", "/"))
	rec.AssertStatus(t, http.StatusServiceUnavailable)
}
