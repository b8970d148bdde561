package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"health-backend/internal/schema"
)

// EncryptedCollection routes every document of one declared shape through the
// field encryptor: encrypt before persistence, decrypt after retrieval.
// Callers never touch envelopes directly, so encryption coverage follows the
// shape's marker table at every call site.
//
// The _id is storage identity, not part of the shape; it is carried around
// the encrypt/decrypt pass untouched.
type EncryptedCollection struct {
	inner Collection
	enc   *schema.Encryptor
	shape *schema.Shape
}

func NewEncryptedCollection(inner Collection, enc *schema.Encryptor, shape *schema.Shape) *EncryptedCollection {
	return &EncryptedCollection{inner: inner, enc: enc, shape: shape}
}

func (c *EncryptedCollection) Shape() *schema.Shape { return c.shape }

func (c *EncryptedCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	doc, err := c.inner.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	return c.decryptKeepingID(doc)
}

func (c *EncryptedCollection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	docs, err := c.inner.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]bson.M, len(docs))
	for i, doc := range docs {
		if out[i], err = c.decryptKeepingID(doc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *EncryptedCollection) InsertOne(ctx context.Context, doc bson.M) (string, error) {
	enc, err := c.encryptKeepingID(doc)
	if err != nil {
		return "", err
	}
	return c.inner.InsertOne(ctx, enc)
}

// UpdateOne encrypts the partial set-document through the shape, so marked
// fields stay covered on updates, not just inserts.
func (c *EncryptedCollection) UpdateOne(ctx context.Context, filter bson.M, set bson.M) error {
	enc, err := c.enc.Encrypt(set, c.shape)
	if err != nil {
		return err
	}
	return c.inner.UpdateOne(ctx, filter, enc)
}

func (c *EncryptedCollection) UpdateMany(ctx context.Context, filter bson.M, set bson.M) (int64, error) {
	enc, err := c.enc.Encrypt(set, c.shape)
	if err != nil {
		return 0, err
	}
	return c.inner.UpdateMany(ctx, filter, enc)
}

func (c *EncryptedCollection) encryptKeepingID(doc bson.M) (bson.M, error) {
	id, hasID := doc["_id"]
	if hasID {
		doc = cloneDoc(doc)
		delete(doc, "_id")
	}
	enc, err := c.enc.Encrypt(doc, c.shape)
	if err != nil {
		return nil, err
	}
	if hasID {
		enc["_id"] = id
	}
	return enc, nil
}

func (c *EncryptedCollection) decryptKeepingID(doc bson.M) (bson.M, error) {
	id, hasID := doc["_id"]
	if hasID {
		doc = cloneDoc(doc)
		delete(doc, "_id")
	}
	dec, err := c.enc.Decrypt(doc, c.shape)
	if err != nil {
		return nil, err
	}
	if hasID {
		dec["_id"] = id
	}
	return dec, nil
}
