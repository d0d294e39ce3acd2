package referrals_test

import (
	"net/http"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/features/referrals"
	"github.com/dalemusser/referralhub/internal/app/lifecycle"
	referralstore "github.com/dalemusser/referralhub/internal/app/store/referrals"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/referralhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type env struct {
	fx     *testutil.Fixtures
	router chi.Router
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := lifecycle.New(referralstore.New(db), nil, "https://referrals.example.com", zap.NewNop())
	h := referrals.NewHandler(svc, nil, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return env{fx: testutil.NewFixtures(t, db), router: referrals.Routes(h, testutil.NewSessionManager(t))}
}

func (e env) do(r *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func submitBody() map[string]string {
	return map[string]string{
		"referrerName":         "Kofi Mensah",
		"referrerEmail":        "kofi@example.com",
		"referrerPhone":        "0200000001",
		"referrerRelationship": "Uncle",
		"studentName":          "Ama Mensah",
		"studentEmail":         "ama@example.com",
		"studentPhone":         "0240000001",
		"admissionDetails":     "BSc Nursing, September intake",
		"referralDate":         "2026-09-01",
	}
}

func TestSubmit_Created(t *testing.T) {
	e := setup(t)
	req := testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/", submitBody()), testutil.StudentUser())
	rec := e.do(req)

	rec.AssertStatus(t, http.StatusCreated)
	var resp lifecycle.SubmitResult
	rec.DecodeJSON(t, &resp)
	if resp.ReferralID == "" {
		t.Fatal("expected referralId")
	}
	if want := "https://referrals.example.com/referral/" + resp.ReferralID; resp.ReferralLink != want {
		t.Errorf("referralLink = %q, want %q", resp.ReferralLink, want)
	}
}

func TestSubmit_Anonymous(t *testing.T) {
	e := setup(t)
	rec := e.do(testutil.NewJSONRequest(t, "POST", "/", submitBody()))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestSubmit_MissingFields(t *testing.T) {
	e := setup(t)
	b := submitBody()
	delete(b, "studentEmail")
	rec := e.do(testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/", b), testutil.StudentUser()))

	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "studentEmail")
}

func TestSubmit_BadJSON(t *testing.T) {
	e := setup(t)
	rec := e.do(testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/", "{not json"), testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestSubmit_FormPostRejected(t *testing.T) {
	e := setup(t)
	req := testutil.NewJSONRequest(t, "POST", "/", submitBody())
	req.Header.Set("Content-Type", "text/plain")
	rec := e.do(testutil.WithUser(req, testutil.StudentUser()))

	rec.AssertStatus(t, http.StatusUnsupportedMediaType)
	rec.AssertContains(t, "unsupported_media_type")
}

func TestList_RoleGate(t *testing.T) {
	e := setup(t)
	tests := []struct {
		name string
		user *testutil.TestUser
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"student", ptr(testutil.StudentUser()), http.StatusForbidden},
		{"registrar", ptr(testutil.RegistrarUser()), http.StatusOK},
		{"finance", ptr(testutil.FinanceUser()), http.StatusOK},
		{"admin", ptr(testutil.AdminUser()), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewRequest("GET", "/")
			if tt.user != nil {
				req = testutil.WithUser(req, *tt.user)
			}
			e.do(req).AssertStatus(t, tt.want)
		})
	}
}

func TestList_StatusFilter(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreateReferral(ctx, "a@example.com", "Pending One", models.StatusPending)
	admitted := e.fx.CreateReferral(ctx, "b@example.com", "Admitted One", models.StatusAdmitted)

	rec := e.do(testutil.WithUser(testutil.NewRequest("GET", "/?status=admitted"), testutil.RegistrarUser()))
	rec.AssertStatus(t, http.StatusOK)
	var list []models.Referral
	rec.DecodeJSON(t, &list)
	if len(list) != 1 || list[0].ReferralID != admitted.ReferralID {
		t.Errorf("got %+v, want only %s", list, admitted.ReferralID)
	}
}

func TestList_UnknownStatus(t *testing.T) {
	e := setup(t)
	rec := e.do(testutil.WithUser(testutil.NewRequest("GET", "/?status=closed"), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestList_EmptyIsArray(t *testing.T) {
	e := setup(t)
	rec := e.do(testutil.WithUser(testutil.NewRequest("GET", "/"), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestMine_OnlyCallersReferrals(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	caller := testutil.StudentUser()
	own := e.fx.CreateReferral(ctx, caller.Email, "Mine", models.StatusPending)
	e.fx.CreateReferral(ctx, "someone@example.com", "Theirs", models.StatusPending)

	rec := e.do(testutil.WithUser(testutil.NewRequest("GET", "/mine"), caller))
	rec.AssertStatus(t, http.StatusOK)
	var list []models.Referral
	rec.DecodeJSON(t, &list)
	if len(list) != 1 || list[0].ReferralID != own.ReferralID {
		t.Errorf("got %d referrals, want only the caller's", len(list))
	}
}

func TestStats(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreateReferral(ctx, "a@example.com", "One", models.StatusPending)
	e.fx.CreateReferral(ctx, "a@example.com", "Two", models.StatusAdmitted)

	rec := e.do(testutil.WithUser(testutil.NewRequest("GET", "/stats"), testutil.FinanceUser()))
	rec.AssertStatus(t, http.StatusOK)
	var st referralstore.Stats
	rec.DecodeJSON(t, &st)
	if st.Total != 2 {
		t.Errorf("total = %d, want 2", st.Total)
	}
}

func paymentBody(referralID string) map[string]any {
	return map[string]any{
		"referralId":         referralID,
		"paymentStatus":      models.PaymentPaid,
		"paymentDate":        "2026-10-01",
		"paymentMode":        models.PaymentModeMobileMoney,
		"transactionDetails": "MoMo ref 12345",
	}
}

func TestRecordPayment(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "a@example.com", "Paid Student", models.StatusAdmitted)

	rec := e.do(testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/", paymentBody(ref.ReferralID)), testutil.FinanceUser()))
	rec.AssertStatus(t, http.StatusOK)
	var resp map[string]string
	rec.DecodeJSON(t, &resp)
	if resp["paymentKey"] == "" {
		t.Errorf("expected paymentKey, got %v", resp)
	}
}

func TestRecordPayment_Errors(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	pending := e.fx.CreateReferral(ctx, "a@example.com", "Pending", models.StatusPending)
	admitted := e.fx.CreateReferral(ctx, "a@example.com", "Admitted", models.StatusAdmitted)

	stale := paymentBody(admitted.ReferralID)
	stale["version"] = 7

	badMode := paymentBody(admitted.ReferralID)
	badMode["paymentMode"] = "Barter"

	tests := []struct {
		name string
		user testutil.TestUser
		body map[string]any
		want int
	}{
		{"registrar forbidden", testutil.RegistrarUser(), paymentBody(admitted.ReferralID), http.StatusForbidden},
		{"not admitted", testutil.FinanceUser(), paymentBody(pending.ReferralID), http.StatusPreconditionFailed},
		{"unknown referral", testutil.FinanceUser(), paymentBody("no-such-id"), http.StatusNotFound},
		{"stale version", testutil.AdminUser(), stale, http.StatusConflict},
		{"bad mode", testutil.FinanceUser(), badMode, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(testutil.WithUser(testutil.NewJSONRequest(t, "PUT", "/", tt.body), tt.user))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestRecordPayment_StaleIfMatch(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ref := e.fx.CreateReferral(ctx, "a@example.com", "Admitted", models.StatusAdmitted)

	req := testutil.NewJSONRequest(t, "PUT", "/", paymentBody(ref.ReferralID))
	req.Header.Set("If-Match", `"3"`)
	rec := e.do(testutil.WithUser(req, testutil.FinanceUser()))
	rec.AssertStatus(t, http.StatusConflict)
}

func ptr(u testutil.TestUser) *testutil.TestUser { return &u }
