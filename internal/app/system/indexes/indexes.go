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
EnsureAll is called at startup. Each collection set is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, set := range collectionSets {
		if err := ensureIndexSet(ctx, db.Collection(set.collection), set.models); err != nil {
			problems = append(problems, set.collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type collectionSet struct {
	collection string
	models     []mongo.IndexModel
}

var collectionSets = []collectionSet{
	{
		collection: "users",
		models: []mongo.IndexModel{
			// Not unique: a changed primary address can arrive before the
			// update that frees it on another user.
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("idx_users_email"),
			},
		},
	},
	{
		collection: "organizations",
		models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetName("idx_orgs_slug"),
			},
			{
				Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName("idx_orgs_nameci__id"),
			},
		},
	},
	{
		collection: "organization_members",
		models: []mongo.IndexModel{
			// Exactly one membership per (user, organization).
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "organization_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_orgmembers_user_org"),
			},
			{
				Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "role", Value: 1}},
				Options: options.Index().SetName("idx_orgmembers_org_role"),
			},
		},
	},
	{
		collection: "webhook_deadletters",
		models: []mongo.IndexModel{
			// Reconciler scan: pending letters, oldest event first.
			{
				Keys: bson.D{
					{Key: "status", Value: 1},
					{Key: "event_at", Value: 1},
					{Key: "_id", Value: 1},
				},
				Options: options.Index().SetName("idx_deadletters_status_eventat_id"),
			},
			{
				Keys:    bson.D{{Key: "delivery_id", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("idx_deadletters_delivery_status"),
			},
		},
	},
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

func boolValue(b *bool) bool { return b != nil && *b }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{} // key signature -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates missing indexes, reuses matching ones, and drops and
// recreates an index whose keys match but whose name or uniqueness differs.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// A collection that does not exist yet lists as empty on most servers;
		// anything else is worth reporting but creation is still attempted.
		zap.L().Warn("list indexes failed", zap.String("collection", coll.Name()), zap.Error(err))
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		name := *m.Options.Name
		unique := boolValue(m.Options.Unique)
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if ex.Name == name && boolValue(ex.Unique) == unique {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", name))
				continue
			}
			zap.L().Info("replacing index with different name or options",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("to", name),
				zap.String("keys", sig))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if unique && isDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique),
			zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
