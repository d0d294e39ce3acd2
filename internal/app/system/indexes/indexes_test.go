package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/referralhub/internal/app/system/indexes"
	"github.com/dalemusser/referralhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(ctx context.Context, t *testing.T, coll *mongo.Collection) map[string]bool {
	t.Helper()
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	// SetupTestDB already ran EnsureAll once.
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expected := map[string][]string{
		"users":         {"uniq_users_email", "idx_users_fullnameci_id", "idx_users_role"},
		"referrals":     {"uniq_referrals_referral_id", "idx_referrals_status_created", "idx_referrals_referrer_created", "idx_referrals_created"},
		"notifications": {"idx_notifications_recipient_created", "idx_notifications_recipient_read"},
		"sessions":      {"idx_sessions_active", "idx_sessions_user"},
		"audit_events":  {"idx_audit_timestamp", "idx_audit_user", "idx_audit_referral", "idx_audit_category_type"},
		"oauth_states":  {"idx_oauth_state", "idx_oauth_ttl"},
	}

	for coll, want := range expected {
		names := indexNames(ctx, t, db.Collection(coll))
		for _, name := range want {
			if !names[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("notifications")
	if _, err := coll.Indexes().DropOne(ctx, "idx_notifications_recipient_read"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "recipient_email", Value: 1}, {Key: "is_read", Value: 1}},
		Options: options.Index().SetName("legacy_name"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := indexNames(ctx, t, coll)
	if names["legacy_name"] || !names["idx_notifications_recipient_read"] {
		t.Errorf("expected legacy index renamed, got %v", names)
	}
}

func TestEnsureAll_UniqueIndexEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("referrals")
	if _, err := coll.InsertOne(ctx, bson.M{"referral_id": "abc"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"referral_id": "abc"}); err == nil {
		t.Error("expected duplicate key error for unique index on referrals.referral_id")
	}
}
