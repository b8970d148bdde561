package storage

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"health-backend/internal/crypto"
	"health-backend/internal/schema"
)

func newEncryptedReviews(t *testing.T) (*EncryptedCollection, *MemoryCollection) {
	t.Helper()
	key, err := crypto.DeriveKey([]byte("storage-test-secret"))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	inner := NewMemoryCollection()
	return NewEncryptedCollection(inner, schema.NewEncryptor(key), schema.Review), inner
}

func TestEncryptedCollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	coll, inner := newEncryptedReviews(t)

	id, err := coll.InsertOne(ctx, bson.M{"user_id": "u-1", "rating": 5, "feedback": "Great app"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// At rest the marked field is an envelope, not plaintext.
	raw, err := inner.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		t.Fatalf("raw find: %v", err)
	}
	if raw["feedback"] == "Great app" {
		t.Fatal("feedback stored in plaintext")
	}
	if raw["rating"] != 5 {
		t.Fatalf("unmarked field changed at rest: %v", raw["rating"])
	}

	// Through the encrypted surface the caller sees plaintext.
	doc, err := coll.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if doc["feedback"] != "Great app" || doc["_id"] != id {
		t.Fatalf("round-trip mismatch: %v", doc)
	}
}

func TestEncryptedCollectionUpdateKeepsCoverage(t *testing.T) {
	ctx := context.Background()
	coll, inner := newEncryptedReviews(t)

	id, err := coll.InsertOne(ctx, bson.M{"user_id": "u-1", "rating": 2, "feedback": "meh"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"feedback": "much better now"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	raw, err := inner.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		t.Fatalf("raw find: %v", err)
	}
	if raw["feedback"] == "much better now" {
		t.Fatal("updated feedback stored in plaintext")
	}
	doc, err := coll.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if doc["feedback"] != "much better now" {
		t.Fatalf("update round-trip mismatch: %v", doc["feedback"])
	}
}

func TestEncryptedCollectionFindMany(t *testing.T) {
	ctx := context.Background()
	coll, _ := newEncryptedReviews(t)

	for _, fb := range []string{"one", "two", "three"} {
		if _, err := coll.InsertOne(ctx, bson.M{"user_id": "u-1", "rating": 4, "feedback": fb}); err != nil {
			t.Fatalf("insert %q: %v", fb, err)
		}
	}
	docs, err := coll.Find(ctx, bson.M{"user_id": "u-1"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	for _, d := range docs {
		if _, ok := d["feedback"].(string); !ok {
			t.Fatalf("feedback missing after decrypt: %v", d)
		}
	}
}

func TestEncryptedCollectionNotFound(t *testing.T) {
	coll, _ := newEncryptedReviews(t)
	if _, err := coll.FindOne(context.Background(), bson.M{"_id": "ghost"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
