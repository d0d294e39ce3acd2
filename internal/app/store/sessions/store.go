// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session creation sources
const (
	CreatedByLogin  = "login"  // password sign-in
	CreatedByGoogle = "google" // Google sign-in
)

// End reasons
const (
	EndLogout     = "logout"
	EndInactive   = "inactive"
	EndSuperseded = "superseded"
)

// Session is the server-side record behind a signed cookie or bearer
// token. A session with LogoutAt set no longer authenticates.
type Session struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	UserID primitive.ObjectID `bson:"user_id"`

	LoginAt      time.Time  `bson:"login_at"`
	LogoutAt     *time.Time `bson:"logout_at,omitempty"`
	LastActiveAt time.Time  `bson:"last_active_at"`

	CreatedBy string `bson:"created_by,omitempty"`
	EndReason string `bson:"end_reason,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Computed on session close
	DurationSecs int64 `bson:"duration_secs,omitempty"`
}

// Store manages server-side sessions.
type Store struct {
	c *mongo.Collection
}

// New creates a new sessions Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// Create starts a new session for a user. Any session the user still has
// open is closed with reason "superseded".
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID, ip, userAgent, createdBy string) (Session, error) {
	now := time.Now().UTC()

	// Pipeline update so duration is computed from each session's own login_at.
	_, _ = s.c.UpdateMany(ctx,
		bson.M{"user_id": userID, "logout_at": nil},
		mongo.Pipeline{{{Key: "$set", Value: bson.M{
			"logout_at":  now,
			"end_reason": EndSuperseded,
			"duration_secs": bson.M{"$toLong": bson.M{
				"$divide": bson.A{bson.M{"$subtract": bson.A{now, "$login_at"}}, 1000},
			}},
		}}}},
	)

	sess := Session{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		LoginAt:      now,
		LastActiveAt: now,
		CreatedBy:    createdBy,
		IP:           ip,
		UserAgent:    userAgent,
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Close ends a session with the given reason and calculates duration.
// Closing an already closed session is a no-op.
func (s *Store) Close(ctx context.Context, sessionID primitive.ObjectID, reason string) error {
	now := time.Now().UTC()

	var sess Session
	if err := s.c.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&sess); err != nil {
		return err
	}
	if sess.LogoutAt != nil {
		return nil
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"_id": sessionID, "logout_at": nil}, bson.M{
		"$set": bson.M{
			"logout_at":     now,
			"end_reason":    reason,
			"duration_secs": int64(now.Sub(sess.LoginAt).Seconds()),
		},
	})
	return err
}

// Touch bumps last_active_at on an open session and reports whether the
// session was open.
func (s *Store) Touch(ctx context.Context, sessionID primitive.ObjectID) (bool, error) {
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID, "logout_at": nil},
		bson.M{"$set": bson.M{"last_active_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsActive implements auth.SessionChecker. It records activity on the
// session as a side effect. Any storage error counts as inactive.
func (s *Store) IsActive(ctx context.Context, sessionID string) bool {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	ok, err := s.Touch(ctx, oid)
	return err == nil && ok
}

// GetByID retrieves a session by its ID.
func (s *Store) GetByID(ctx context.Context, sessionID primitive.ObjectID) (Session, error) {
	var sess Session
	err := s.c.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&sess)
	return sess, err
}

// GetByUser retrieves session history for a user, newest first.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "login_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sessions []Session
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CloseInactive closes open sessions idle for longer than inactiveThreshold.
// This is called by a background job.
func (s *Store) CloseInactive(ctx context.Context, inactiveThreshold time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-inactiveThreshold)

	result, err := s.c.UpdateMany(ctx,
		bson.M{
			"logout_at":      nil,
			"last_active_at": bson.M{"$lt": cutoff},
		},
		bson.M{
			"$set": bson.M{
				"logout_at":  now,
				"end_reason": EndInactive,
			},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
