// internal/app/store/deadletters/deadletterstore.go
package deadletterstore

import (
	"context"
	"time"

	"github.com/dalemusser/airodental/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("webhook_deadletters")}
}

// Add records a pending dead letter. A redelivery with the same delivery id
// updates the existing pending record instead of adding another.
func (s *Store) Add(ctx context.Context, dl models.DeadLetter) error {
	now := time.Now().UTC()
	if dl.DeliveryID == "" {
		dl.ID = primitive.NewObjectID()
		dl.Status = models.DeadLetterPending
		dl.CreatedAt = now
		dl.UpdatedAt = now
		_, err := s.c.InsertOne(ctx, dl)
		return err
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"delivery_id": dl.DeliveryID, "status": models.DeadLetterPending},
		bson.M{
			"$set": bson.M{
				"event_type": dl.EventType,
				"payload":    dl.Payload,
				"reason":     dl.Reason,
				"event_at":   dl.EventAt,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"attempts":   0,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// ListPending returns up to limit pending letters, oldest event first.
func (s *Store) ListPending(ctx context.Context, limit int64) ([]models.DeadLetter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "event_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"status": models.DeadLetterPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.DeadLetter
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkResolved closes a letter after a successful replay.
func (s *Store) MarkResolved(ctx context.Context, id primitive.ObjectID) error {
	return s.setStatus(ctx, id, models.DeadLetterResolved, "")
}

// MarkAbandoned closes a letter that will not be retried again.
func (s *Store) MarkAbandoned(ctx context.Context, id primitive.ObjectID, reason string) error {
	return s.setStatus(ctx, id, models.DeadLetterAbandoned, reason)
}

// IncAttempts records a failed replay and returns the new attempt count.
func (s *Store) IncAttempts(ctx context.Context, id primitive.ObjectID, reason string) (int, error) {
	var dl models.DeadLetter
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"reason": reason, "updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&dl)
	if err != nil {
		return 0, err
	}
	return dl.Attempts, nil
}

// CountByStatus backs the pending backlog reported by /health.
func (s *Store) CountByStatus(ctx context.Context, status string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": status})
}

func (s *Store) setStatus(ctx context.Context, id primitive.ObjectID, status, reason string) error {
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	if reason != "" {
		set["reason"] = reason
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}
