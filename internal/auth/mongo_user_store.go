package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoUserStore(ctx context.Context, uri, dbName, collName string) (*MongoUserStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return NewMongoUserStoreWithClient(ctx, cli, dbName, collName)
}

func NewMongoUserStoreWithClient(ctx context.Context, cli *mongo.Client, dbName, collName string) (*MongoUserStore, error) {
	coll := cli.Database(dbName).Collection(collName)

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoUserStore{client: cli, coll: coll}, nil
}

type userDoc struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PassHash     string `bson:"pass_hash"`
	Roles        []Role `bson:"roles"`
	TokenVersion int    `bson:"token_version"`
}

func (s *MongoUserStore) Add(ctx context.Context, u *User) error {
	doc := userDoc{
		ID:           u.ID,
		Email:        normalizeEmail(u.Email),
		PassHash:     u.PassHash,
		Roles:        u.Roles,
		TokenVersion: u.TokenVersion,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if wex, ok := err.(mongo.WriteException); ok {
		for _, we := range wex.WriteErrors {
			if we.Code == 11000 { // duplicate key
				return errors.New("user or email already exists")
			}
		}
	}
	return err
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter any) (*User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           doc.ID,
		Email:        doc.Email,
		PassHash:     doc.PassHash,
		Roles:        doc.Roles,
		TokenVersion: doc.TokenVersion,
	}, nil
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, id, newHash string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"pass_hash": newHash}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// BumpTokenVersion is a single-document atomic $inc; no read-modify-write, so
// concurrent bumps cannot lose increments.
func (s *MongoUserStore) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	var doc struct {
		TokenVersion int `bson:"token_version"`
	}
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"token_version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).
			SetProjection(bson.M{"token_version": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return doc.TokenVersion, nil
}

func (s *MongoUserStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
