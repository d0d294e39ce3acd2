package notifications_test

import (
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/referralhub/internal/app/features/errors"
	"github.com/dalemusser/referralhub/internal/app/features/notifications"
	"github.com/dalemusser/referralhub/internal/app/notify"
	notificationstore "github.com/dalemusser/referralhub/internal/app/store/notifications"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/dalemusser/referralhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*testutil.Fixtures, chi.Router) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	d := notify.NewDispatcher(notificationstore.New(db), nil, zap.NewNop())
	h := notifications.NewHandler(d, nil, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return testutil.NewFixtures(t, db), notifications.Routes(h, testutil.NewSessionManager(t))
}

func serve(router chi.Router, r *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestList_OwnOnly(t *testing.T) {
	fx, router := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	me := testutil.StudentUser()
	fx.CreateNotification(ctx, me.Email, "Mine")
	fx.CreateNotification(ctx, "other@example.com", "Theirs")

	rec := serve(router, testutil.WithUser(testutil.NewRequest("GET", "/"), me))
	rec.AssertStatus(t, http.StatusOK)
	var list []models.Notification
	rec.DecodeJSON(t, &list)
	if len(list) != 1 || list[0].Title != "Mine" {
		t.Errorf("got %+v", list)
	}
}

func TestList_Anonymous(t *testing.T) {
	_, router := setup(t)
	serve(router, testutil.NewRequest("GET", "/")).AssertStatus(t, http.StatusUnauthorized)
}

func TestMarkRead(t *testing.T) {
	fx, router := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	me := testutil.StudentUser()
	mine := fx.CreateNotification(ctx, me.Email, "Mine")
	theirs := fx.CreateNotification(ctx, "other@example.com", "Theirs")

	rec := serve(router, testutil.WithUser(testutil.NewRequest("PUT", "/"+mine.ID.Hex()+"/read"), me))
	rec.AssertStatus(t, http.StatusNoContent)

	rec = serve(router, testutil.WithUser(testutil.NewRequest("PUT", "/"+theirs.ID.Hex()+"/read"), me))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = serve(router, testutil.WithUser(testutil.NewRequest("PUT", "/not-an-id/read"), me))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = serve(router, testutil.WithUser(testutil.NewRequest("GET", "/unread-count"), me))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"unread":0`)
}

func TestMarkAllRead(t *testing.T) {
	fx, router := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	me := testutil.RegistrarUser()
	fx.CreateNotification(ctx, me.Email, "One")
	fx.CreateNotification(ctx, me.Email, "Two")
	fx.CreateNotification(ctx, "other@example.com", "Three")

	rec := serve(router, testutil.WithUser(testutil.NewRequest("PUT", "/read-all"), me))
	rec.AssertStatus(t, http.StatusOK)
	var resp map[string]int64
	rec.DecodeJSON(t, &resp)
	if resp["updated"] != 2 {
		t.Errorf("updated = %d, want 2", resp["updated"])
	}
}

func TestStream_NoHub(t *testing.T) {
	_, router := setup(t)
	rec := serve(router, testutil.WithUser(testutil.NewRequest("GET", "/ws"), testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusServiceUnavailable)
}
