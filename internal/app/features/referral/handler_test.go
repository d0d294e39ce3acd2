package referral_test

import (
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/features/referral"
	"github.com/dalemusser/referralhub/internal/app/lifecycle"
	referralstore "github.com/dalemusser/referralhub/internal/app/store/referrals"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/referralhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type env struct {
	fx     *testutil.Fixtures
	store  *referralstore.Store
	router chi.Router
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := referralstore.New(db)
	svc := lifecycle.New(store, nil, "http://localhost:8080", zap.NewNop())
	h := referral.NewHandler(svc, nil, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return env{
		fx:     testutil.NewFixtures(t, db),
		store:  store,
		router: referral.Routes(h, testutil.NewSessionManager(t)),
	}
}

func (e env) do(r *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func studentData() map[string]any {
	return map[string]any{
		"title":    "Ms",
		"fullName": "Ama Mensah",
		"address":  "12 Ring Road, Accra",
		"contact":  "0240000001",
		"program":  "BSc Nursing",
		"dob":      "2005-04-12",
		"gender":   "Female",
	}
}

func TestGet_PublicWithETag(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)

	rec := e.do(testutil.NewRequest("GET", "/"+ref.ReferralID))
	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Header().Get("ETag"); got != `"1"` {
		t.Errorf("ETag = %q, want \"1\"", got)
	}
	var got models.Referral
	rec.DecodeJSON(t, &got)
	if got.ReferralID != ref.ReferralID || got.Version != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestGet_NotModified(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)

	req := testutil.NewRequest("GET", "/"+ref.ReferralID)
	req.Header.Set("If-None-Match", `"1"`)
	e.do(req).AssertStatus(t, http.StatusNotModified)
}

func TestGet_Unknown(t *testing.T) {
	e := setup(t)
	e.do(testutil.NewRequest("GET", "/does-not-exist")).AssertStatus(t, http.StatusNotFound)
}

func TestAttachStudentData(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)

	rec := e.do(testutil.NewJSONRequest(t, "POST", "/"+ref.ReferralID, studentData()))
	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Header().Get("ETag"); got != `"2"` {
		t.Errorf("ETag = %q, want \"2\"", got)
	}

	stored, err := e.store.GetByReferralID(ctx, ref.ReferralID)
	if err != nil {
		t.Fatalf("GetByReferralID: %v", err)
	}
	if stored.StudentData == nil || stored.StudentData.Program != "BSc Nursing" {
		t.Errorf("student data not stored: %+v", stored.StudentData)
	}
}

func TestAttachStudentData_Errors(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)

	missing := studentData()
	delete(missing, "program")
	stale := studentData()
	stale["version"] = 5

	tests := []struct {
		name string
		id   string
		body any
		want int
	}{
		{"missing program", ref.ReferralID, missing, http.StatusBadRequest},
		{"stale version", ref.ReferralID, stale, http.StatusConflict},
		{"unknown referral", "nope", studentData(), http.StatusNotFound},
		{"empty body", ref.ReferralID, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(testutil.NewJSONRequest(t, "POST", "/"+tt.id, tt.body))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestAdvanceStatus_RoleGate(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)
	body := map[string]string{"status": "inProgress"}

	tests := []struct {
		name string
		user testutil.TestUser
		want int
	}{
		{"student", testutil.StudentUser(), http.StatusForbidden},
		{"finance", testutil.FinanceUser(), http.StatusForbidden},
		{"registrar", testutil.RegistrarUser(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/"+ref.ReferralID, body), tt.user)
			e.do(req).AssertStatus(t, tt.want)
		})
	}

	anon := e.do(testutil.NewJSONRequest(t, "PUT", "/"+ref.ReferralID, body))
	anon.AssertStatus(t, http.StatusUnauthorized)
}

func TestAdvanceStatus_Transitions(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := testutil.AdminUser()

	admitted := e.fx.CreateReferral(ctx, "kofi@example.com", "Done", models.StatusAdmitted)
	rec := e.do(testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/"+admitted.ReferralID,
		map[string]string{"status": "pending"}), admin))
	rec.AssertStatus(t, http.StatusPreconditionFailed)

	pending := e.fx.CreateReferral(ctx, "kofi@example.com", "New", models.StatusPending)
	rec = e.do(testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/"+pending.ReferralID,
		map[string]string{"status": "rejected"}), admin))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.do(testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/"+pending.ReferralID,
		map[string]string{"status": "admitted"}), admin))
	rec.AssertStatus(t, http.StatusOK)
	var got models.Referral
	rec.DecodeJSON(t, &got)
	if got.Status != models.StatusAdmitted || got.Version != 2 {
		t.Errorf("got status %s version %d", got.Status, got.Version)
	}
}

func TestAdvanceStatus_IfMatch(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)
	body := map[string]string{"status": "inProgress"}

	stale := testutil.NewJSONRequest(t, "PUT", "/"+ref.ReferralID, body)
	stale.Header.Set("If-Match", `"9"`)
	e.do(testutil.WithUser(stale, testutil.RegistrarUser())).AssertStatus(t, http.StatusConflict)

	bad := testutil.NewJSONRequest(t, "PUT", "/"+ref.ReferralID, body)
	bad.Header.Set("If-Match", "yesterday")
	e.do(testutil.WithUser(bad, testutil.RegistrarUser())).AssertStatus(t, http.StatusBadRequest)

	fresh := testutil.NewJSONRequest(t, "PUT", "/"+ref.ReferralID, body)
	fresh.Header.Set("If-Match", `"1"`)
	e.do(testutil.WithUser(fresh, testutil.RegistrarUser())).AssertStatus(t, http.StatusOK)
}

func TestAdvanceStatus_StatusField(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := testutil.AdminUser()

	tests := []struct {
		name       string
		body       map[string]string
		wantCode   int
		wantStatus models.ReferralStatus
	}{
		{"status", map[string]string{"status": "admitted"}, http.StatusOK, models.StatusAdmitted},
		{"referralStatus alias", map[string]string{"referralStatus": "inProgress"}, http.StatusOK, models.StatusInProgress},
		{"status wins over alias", map[string]string{"status": "admitted", "referralStatus": "bogus"}, http.StatusOK, models.StatusAdmitted},
		{"missing", map[string]string{}, http.StatusBadRequest, models.StatusPending},
		{"unknown", map[string]string{"status": "rejected"}, http.StatusBadRequest, models.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := e.fx.CreateReferral(ctx, "kofi@example.com", "Ama", models.StatusPending)
			rec := e.do(testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/"+ref.ReferralID, tt.body), admin))
			rec.AssertStatus(t, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				rec.AssertContains(t, `"status"`)
			}

			got, err := e.store.GetByReferralID(ctx, ref.ReferralID)
			if err != nil {
				t.Fatalf("GetByReferralID: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("stored status = %s, want %s", got.Status, tt.wantStatus)
			}
		})
	}
}
