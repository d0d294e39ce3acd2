// internal/app/store/referrals/store.go
package referralstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/referralhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateReferralID is returned when a referral_id is already taken.
	ErrDuplicateReferralID = errors.New("referral id already exists")
	// ErrVersionMismatch is returned by UpdateIfVersion when the stored
	// version no longer matches.
	ErrVersionMismatch = errors.New("referral was modified concurrently")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("referrals")}
}

// Insert stores a new referral. The caller supplies ReferralID, Status and
// Version; ID and missing timestamps are filled in.
func (s *Store) Insert(ctx context.Context, r models.Referral) (models.Referral, error) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Referral{}, ErrDuplicateReferralID
		}
		return models.Referral{}, err
	}
	return r, nil
}

// GetByReferralID loads a referral by its public id. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByReferralID(ctx context.Context, referralID string) (*models.Referral, error) {
	var r models.Referral
	if err := s.c.FindOne(ctx, bson.M{"referral_id": referralID}).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Status        models.ReferralStatus
	ReferrerEmail string
}

// List returns matching referrals, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.Referral, error) {
	q := bson.M{}
	if f.Status != "" {
		q["referral_status"] = f.Status
	}
	if f.ReferrerEmail != "" {
		q["referrer_email"] = f.ReferrerEmail
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Referral{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update lists the parts of a referral a mutation replaces. Nil fields are
// left alone; StudentData and PaymentData are replaced whole.
type Update struct {
	Status      *models.ReferralStatus
	StudentData *models.StudentData
	PaymentData *models.PaymentData
}

// UpdateIfVersion applies upd only if the stored version equals version,
// bumps the version by one and returns the new record. A mismatch (or a
// missing referral) yields ErrVersionMismatch.
func (s *Store) UpdateIfVersion(ctx context.Context, referralID string, version int64, upd Update) (*models.Referral, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Status != nil {
		set["referral_status"] = *upd.Status
	}
	if upd.StudentData != nil {
		set["student_data"] = upd.StudentData
	}
	if upd.PaymentData != nil {
		set["payment_data"] = upd.PaymentData
	}

	var r models.Referral
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"referral_id": referralID, "version": version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrVersionMismatch
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Count is one bucket of an aggregate.
type Count struct {
	Key   string `bson:"_id" json:"key"`
	Count int64  `bson:"count" json:"count"`
}

// Stats summarizes the referrals collection.
type Stats struct {
	Total           int64   `json:"total"`
	ByStatus        []Count `json:"byStatus"`
	ByPaymentStatus []Count `json:"byPaymentStatus"`
	ByGender        []Count `json:"byGender"`
	ByProgram       []Count `json:"byProgram"`
	Registered      int64   `json:"registered"`
	Unregistered    int64   `json:"unregistered"`
}

func groupBy(field string) bson.A {
	return bson.A{
		bson.M{"$match": bson.M{field: bson.M{"$nin": bson.A{nil, ""}}}},
		bson.M{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}
}

// Stats computes every aggregate in a single $facet pass.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"total":      bson.A{bson.M{"$count": "n"}},
			"by_status":  groupBy("referral_status"),
			"by_payment": groupBy("payment_data.payment_status"),
			"by_gender":  groupBy("student_data.gender"),
			"by_program": groupBy("student_data.program"),
			"registered": bson.A{
				bson.M{"$match": bson.M{"student_data": bson.M{"$type": "object"}}},
				bson.M{"$count": "n"},
			},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	defer cur.Close(ctx)

	type counter struct {
		N int64 `bson:"n"`
	}
	var rows []struct {
		Total      []counter `bson:"total"`
		ByStatus   []Count   `bson:"by_status"`
		ByPayment  []Count   `bson:"by_payment"`
		ByGender   []Count   `bson:"by_gender"`
		ByProgram  []Count   `bson:"by_program"`
		Registered []counter `bson:"registered"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, err
	}

	st := Stats{
		ByStatus:        []Count{},
		ByPaymentStatus: []Count{},
		ByGender:        []Count{},
		ByProgram:       []Count{},
	}
	if len(rows) == 0 {
		return st, nil
	}
	row := rows[0]
	if len(row.Total) > 0 {
		st.Total = row.Total[0].N
	}
	if len(row.Registered) > 0 {
		st.Registered = row.Registered[0].N
	}
	st.Unregistered = st.Total - st.Registered
	st.ByStatus = append(st.ByStatus, row.ByStatus...)
	st.ByPaymentStatus = append(st.ByPaymentStatus, row.ByPayment...)
	st.ByGender = append(st.ByGender, row.ByGender...)
	st.ByProgram = append(st.ByProgram, row.ByProgram...)
	return st, nil
}
