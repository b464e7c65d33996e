package sessions

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoRepository keeps the refresh slot as a field on the user document,
// the way the original schema did. The compare-and-swap relies on
// UpdateOne filtering on both the id and the currently stored value, which
// Mongo applies atomically per document.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Bind(ctx context.Context, sub, token string, _ time.Duration) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": sub},
		bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("bind refresh slot: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, sub string) (string, error) {
	var doc struct {
		RefreshToken string `bson:"refreshToken"`
	}
	err := r.col.FindOne(ctx, bson.M{"_id": sub}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", ErrIdentityNotFound
		}
		return "", fmt.Errorf("get refresh slot: %w", err)
	}
	if doc.RefreshToken == "" {
		return "", ErrIdentityNotFound
	}
	return doc.RefreshToken, nil
}

func (r *MongoRepository) Replace(ctx context.Context, sub, old, new string, _ time.Duration) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": sub, "refreshToken": old},
		bson.M{"$set": bson.M{"refreshToken": new, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("replace refresh slot: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	// distinguish a superseded token from an unknown identity
	if _, gerr := r.Get(ctx, sub); gerr != nil {
		return gerr
	}
	return ErrRefreshStale
}

func (r *MongoRepository) Delete(ctx context.Context, sub string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": sub},
		bson.M{"$unset": bson.M{"refreshToken": ""}},
	)
	if err != nil {
		return fmt.Errorf("delete refresh slot: %w", err)
	}
	return nil
}
