// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

var _ mirror.Organizations = (*Store)(nil)

// Upsert creates or refreshes the organization's descriptive fields.
func (s *Store) Upsert(ctx context.Context, org models.Organization) error {
	now := time.Now().UTC()
	set := bson.M{
		"name":       org.Name,
		"name_ci":    text.Fold(org.Name),
		"slug":       org.Slug,
		"image_url":  org.ImageURL,
		"updated_at": now,
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": org.ID},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"active_plan_id": org.ActivePlanID,
				"created_at":     now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// SetActivePlan applies a subscription event unless a newer one already has.
func (s *Store) SetActivePlan(ctx context.Context, id string, planID *string, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"plan_event_at": bson.M{"$exists": false}},
				bson.M{"plan_event_at": nil},
				bson.M{"plan_event_at": bson.M{"$lte": at}},
			},
		},
		bson.M{"$set": bson.M{
			"active_plan_id": planID,
			"plan_event_at":  at,
			"updated_at":     time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, mirror.ErrNotFound
	}
	return false, nil
}

// AssignPlan is the mock billing path: it writes the plan without touching
// plan_event_at and creates the organization when it is missing.
func (s *Store) AssignPlan(ctx context.Context, org models.Organization) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": org.ID},
		bson.M{
			"$set": bson.M{
				"active_plan_id": org.ActivePlanID,
				"updated_at":     now,
			},
			"$setOnInsert": bson.M{
				"name":       org.Name,
				"name_ci":    text.Fold(org.Name),
				"slug":       org.Slug,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Organization{}, mirror.ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
