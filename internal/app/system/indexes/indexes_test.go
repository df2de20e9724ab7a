package indexes_test

import (
	"testing"

	"github.com/dalemusser/airodental/internal/app/system/indexes"
	"github.com/dalemusser/airodental/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, db *mongo.Database, collection string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			t.Fatalf("Decode index failed: %v", err)
		}
		names[idx["name"].(string)] = true
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	want := map[string][]string{
		"users":                {"idx_users_email"},
		"organizations":        {"idx_orgs_slug", "idx_orgs_nameci__id"},
		"organization_members": {"uniq_orgmembers_user_org", "idx_orgmembers_org_role"},
		"webhook_deadletters":  {"idx_deadletters_status_eventat_id", "idx_deadletters_delivery_status"},
	}
	for coll, names := range want {
		got := indexNames(t, db, coll)
		for _, name := range names {
			if !got[name] {
				t.Errorf("%s: missing index %s (have %v)", coll, name, got)
			}
		}
	}
}

func TestEnsureAll_RenamesMismatchedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("organizations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetName("slug_1_legacy"),
	})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	got := indexNames(t, db, "organizations")
	if got["slug_1_legacy"] || !got["idx_orgs_slug"] {
		t.Errorf("indexes = %v", got)
	}
}

func TestEnsureAll_UniqueMembershipEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("organization_members")
	doc := bson.M{"user_id": "user_1", "organization_id": "org_1", "role": "org:member"}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"user_id": "user_1", "organization_id": "org_1", "role": "org:admin"}); !mongo.IsDuplicateKeyError(err) {
		t.Errorf("second insert: got %v, want duplicate key error", err)
	}
}
