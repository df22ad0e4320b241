package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the subset of *mongo.Collection used by MongoValidator.
type MongoCollection interface {
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// MongoValidator implements Validator on MongoDB. Unlike RedisValidator it
// can answer Unchecked across processes, so tooling can report emissions
// that were never checked anywhere in a deployment.
//
// Document structure:
//
//	{
//	    "_id": "event-id",
//	    "type": "security/alert",
//	    "blocking": true,
//	    "checked": false,
//	    "emitted_at": ISODate("2024-01-15T10:30:00Z")
//	}
//
// Example:
//
//	collection := client.Database("myapp").Collection("botevent_usage")
//	v := usage.NewMongoValidator(collection, usage.WithMongoTTL(time.Hour))
//	if err := v.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
type MongoValidator struct {
	collection MongoCollection
	ttl        time.Duration
}

// MongoOption configures the MongoDB validator
type MongoOption func(*MongoValidator)

// WithMongoTTL sets how long emissions are kept. MongoDB removes expired
// documents through a TTL index on "emitted_at"; until it does, reads
// ignore them. Default is 0 (no expiration).
func WithMongoTTL(ttl time.Duration) MongoOption {
	return func(v *MongoValidator) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// emissionDoc represents the MongoDB document structure
type emissionDoc struct {
	ID        string    `bson:"_id"`
	EventType string    `bson:"type"`
	Blocking  bool      `bson:"blocking"`
	Checked   bool      `bson:"checked"`
	EmittedAt time.Time `bson:"emitted_at"`
}

func (d emissionDoc) emission() Emission {
	return Emission{
		EventType:   d.EventType,
		EventID:     d.ID,
		WasBlocking: d.Blocking,
		Checked:     d.Checked,
		EmittedAt:   d.EmittedAt,
	}
}

// NewMongoValidator creates a MongoDB-backed validator.
func NewMongoValidator(collection MongoCollection, opts ...MongoOption) *MongoValidator {
	v := &MongoValidator{collection: collection}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Indexes returns the index models for the usage collection:
//   - blocking/checked/emitted_at for Unchecked
//   - TTL index on "emitted_at" (if TTL is configured)
func (v *MongoValidator) Indexes() []mongo.IndexModel {
	indexes := []mongo.IndexModel{{
		Keys: bson.D{
			{Key: "blocking", Value: 1},
			{Key: "checked", Value: 1},
			{Key: "emitted_at", Value: 1},
		},
		Options: options.Index().SetName("usage_unchecked"),
	}}
	if v.ttl > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "emitted_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(int32(v.ttl.Seconds())).
				SetName("usage_ttl"),
		})
	}
	return indexes
}

// EnsureIndexes creates the indexes returned by Indexes. The collection
// must be a *mongo.Collection or otherwise expose Indexes().
func (v *MongoValidator) EnsureIndexes(ctx context.Context) error {
	ic, ok := v.collection.(interface{ Indexes() mongo.IndexView })
	if !ok {
		return errors.New("mongo collection does not support index management")
	}
	_, err := ic.Indexes().CreateMany(ctx, v.Indexes())
	return err
}

// live restricts filter to documents the TTL monitor has not removed yet.
func (v *MongoValidator) live(filter bson.M) bson.M {
	if v.ttl > 0 {
		filter["emitted_at"] = bson.M{"$gt": time.Now().Add(-v.ttl)}
	}
	return filter
}

// TrackEmission upserts the emission document. Tracking an ID again resets it.
func (v *MongoValidator) TrackEmission(ctx context.Context, eventType, eventID string, wasBlocking bool) error {
	doc := emissionDoc{
		ID:        eventID,
		EventType: eventType,
		Blocking:  wasBlocking,
		EmittedAt: time.Now(),
	}
	_, err := v.collection.ReplaceOne(ctx, bson.M{"_id": eventID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace: %w", err)
	}
	return nil
}

// MarkProgressionChecked sets checked on a live document.
// Returns ErrNotTracked when none matches.
func (v *MongoValidator) MarkProgressionChecked(ctx context.Context, eventID string) error {
	res, err := v.collection.UpdateOne(ctx,
		v.live(bson.M{"_id": eventID}),
		bson.M{"$set": bson.M{"checked": true}})
	if err != nil {
		return fmt.Errorf("mongo update: %w", err)
	}
	if res == nil || res.MatchedCount == 0 {
		return ErrNotTracked
	}
	return nil
}

// Emission loads the tracked state of an event.
func (v *MongoValidator) Emission(ctx context.Context, eventID string) (Emission, error) {
	var doc emissionDoc
	err := v.collection.FindOne(ctx, v.live(bson.M{"_id": eventID})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Emission{}, ErrNotTracked
	}
	if err != nil {
		return Emission{}, fmt.Errorf("mongo find: %w", err)
	}
	return doc.emission(), nil
}

// Unchecked returns the blocking emissions whose proceed flag was never
// read, oldest first.
func (v *MongoValidator) Unchecked(ctx context.Context) ([]Emission, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "emitted_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := v.collection.Find(ctx, v.live(bson.M{"blocking": true, "checked": false}), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Emission
	for cursor.Next(ctx) {
		var doc emissionDoc
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		out = append(out, doc.emission())
	}
	return out, cursor.Err()
}

// Report logs every unchecked blocking emission at warn level and returns
// how many were found.
func (v *MongoValidator) Report(ctx context.Context, logger *slog.Logger) (int, error) {
	unchecked, err := v.Unchecked(ctx)
	if err != nil {
		return 0, err
	}
	return reportUnchecked(logger, unchecked), nil
}

// Remove deletes the tracked state of an event.
func (v *MongoValidator) Remove(ctx context.Context, eventID string) error {
	_, err := v.collection.DeleteOne(ctx, bson.M{"_id": eventID})
	return err
}

// Compile-time checks
var (
	_ Validator       = (*MongoValidator)(nil)
	_ MongoCollection = (*mongo.Collection)(nil)
)
