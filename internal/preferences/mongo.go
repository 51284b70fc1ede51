package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per user in the preferences collection, keyed by user id.
type MongoStore struct {
	collection *mongo.Collection
}

type preferenceDocument struct {
	UserID    string    `bson:"_id"`
	Timezone  string    `bson:"timezone"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoStore(collection *mongo.Collection) (*MongoStore, error) {
	if collection == nil {
		return nil, errors.New("preferences: mongo collection is nil")
	}
	return &MongoStore{collection: collection}, nil
}

func (s *MongoStore) Get(ctx context.Context, userID string) (string, error) {
	key, err := userKey(userID)
	if err != nil {
		return "", err
	}

	var doc preferenceDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("mongo get preference: %w", err)
	}
	return doc.Timezone, nil
}

func (s *MongoStore) Set(ctx context.Context, userID, timezone string) error {
	key, err := userKey(userID)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"timezone":   strings.TrimSpace(timezone),
		"updated_at": time.Now().UTC(),
	}}

	_, err = s.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo set preference: %w", err)
	}
	return nil
}
