// internal/app/store/notifications/store.go
package notificationstore

import (
	"context"
	"time"

	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Insert stores a notification, filling in ID and CreatedAt.
func (s *Store) Insert(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// ListByRecipient returns the recipient's notifications, newest first.
// A limit of 0 returns all of them.
func (s *Store) ListByRecipient(ctx context.Context, recipient string, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"recipient_email": recipient}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flags one notification as read. The notification must belong to
// recipient; otherwise mongo.ErrNoDocuments is returned.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, recipient string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_email": recipient},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkAllRead flags every unread notification of recipient and returns how
// many changed.
func (s *Store) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"recipient_email": recipient, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountUnread returns the number of unread notifications for recipient.
func (s *Store) CountUnread(ctx context.Context, recipient string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"recipient_email": recipient, "is_read": false})
}
