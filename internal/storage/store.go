// Package storage exposes the document-store surface the rest of the backend
// writes through: point reads and single/multi document updates, with
// shape-driven encryption applied on the way in and out.
package storage

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

var ErrNotFound = errors.New("storage: document not found")

// Collection is the raw collaborator surface. No multi-document transactions
// are assumed; every caller invariant must hold under single-document atomic
// updates.
type Collection interface {
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	InsertOne(ctx context.Context, doc bson.M) (string, error)
	UpdateOne(ctx context.Context, filter bson.M, set bson.M) error
	UpdateMany(ctx context.Context, filter bson.M, set bson.M) (int64, error)
}

// MemoryCollection backs tests: equality-matching filters over an in-process
// map, same contract as the Mongo implementation.
type MemoryCollection struct {
	mu   sync.Mutex
	docs map[string]bson.M
}

func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{docs: make(map[string]bson.M)}
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (c *MemoryCollection) FindOne(_ context.Context, filter bson.M) (bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return cloneDoc(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (c *MemoryCollection) Find(_ context.Context, filter bson.M) ([]bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []bson.M
	for _, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, cloneDoc(doc))
		}
	}
	return out, nil
}

func (c *MemoryCollection) InsertOne(_ context.Context, doc bson.M) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := cloneDoc(doc)
	id, _ := stored["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		stored["_id"] = id
	}
	c.docs[id] = stored
	return id, nil
}

func (c *MemoryCollection) UpdateOne(_ context.Context, filter bson.M, set bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			for k, v := range set {
				doc[k] = v
			}
			return nil
		}
	}
	return ErrNotFound
}

func (c *MemoryCollection) UpdateMany(_ context.Context, filter bson.M, set bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			for k, v := range set {
				doc[k] = v
			}
			n++
		}
	}
	return n, nil
}

func cloneDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
