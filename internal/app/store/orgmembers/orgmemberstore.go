// internal/app/store/orgmembers/orgmemberstore.go
package orgmemberstore

import (
	"context"
	"time"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organization_members")}
}

var _ mirror.Members = (*Store)(nil)

// Upsert writes the role for (user, organization) unless the stored role
// came from a later event. Callers check that both parents exist first.
func (s *Store) Upsert(ctx context.Context, m models.OrganizationMember) (bool, error) {
	now := time.Now().UTC()
	at := m.EventAt.UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"user_id":         m.UserID,
			"organization_id": m.OrganizationID,
			"$or": bson.A{
				bson.M{"event_at": bson.M{"$exists": false}},
				bson.M{"event_at": nil},
				bson.M{"event_at": bson.M{"$lte": at}},
			},
		},
		bson.M{
			"$set":         bson.M{"role": m.Role, "event_at": at, "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// A newer membership for the pair exists, so the filter missed and
		// the insert collided with it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}
