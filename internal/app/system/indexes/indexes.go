// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"referrals", ensureReferrals},
		{"notifications", ensureNotifications},
		{"sessions", ensureSessions},
		{"audit_events", ensureAuditEvents},
		{"oauth_states", ensureOAuthStates},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// createErr explains a failed create, pointing at duplicates when a unique
// index cannot be built.
func createErr(coll *mongo.Collection, name, sig string, unique bool, err error) string {
	if isDuplicateKeyErr(err) && unique {
		field := strings.SplitN(sig, ":", 2)[0]
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present). Example finder: "+
			`db.%s.aggregate([{ $group: { _id: "$%s", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`,
			coll.Name(), name, coll.Name(), field)
	}
	return fmt.Sprintf("%s(%s): %v", coll.Name(), name, err)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		unique := desiredUnique != nil && *desiredUnique
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		ex, found := listExisting(ctx, coll)[desiredSig]
		switch {
		case found && sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName):
			zap.L().Debug("reusing existing index",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name),
				zap.String("keys", desiredSig))
			continue

		case found:
			// Same keys but a different name or uniqueness: drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", unique),
				zap.Error(err))
			errs = append(errs, createErr(coll, desiredName, desiredSig, unique, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", desiredSig),
			zap.Bool("unique", unique),
			zap.Bool("recreated", found),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		// Email is the login identity; exact match, unique.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Admin users page sort
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_fullnameci_id"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_users_role"),
		},
	})
}

func ensureReferrals(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("referrals"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "referral_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_referrals_referral_id"),
		},
		// List by status, newest first
		{
			Keys: bson.D{
				{Key: "referral_status", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_referrals_status_created"),
		},
		// "My referrals"
		{
			Keys: bson.D{
				{Key: "referrer_email", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_referrals_referrer_created"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_referrals_created"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("notifications"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient_email", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_recipient_created"),
		},
		// Unread counts and read-all
		{
			Keys:    bson.D{{Key: "recipient_email", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("idx_notifications_recipient_read"),
		},
	})
}

func ensureSessions(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("sessions"), []mongo.IndexModel{
		// Inactive-session sweep
		{
			Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_active_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_active"),
		},
		// User session history
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "login_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_user"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user"),
		},
		{
			Keys:    bson.D{{Key: "referral_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_referral"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_type"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("oauth_states"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_oauth_state"),
		},
		// TTL for automatic cleanup
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_ttl"),
		},
	})
}
