package users

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/minglehq/mingle/internal/models"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id, url, key string) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, u)
	return err
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) GetByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": usernameOrEmail},
		bson.M{"email": usernameOrEmail},
	}}
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) UpdateAvatar(ctx context.Context, id, url, key string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"avatarUrl": url, "avatarKey": key, "updatedAt": time.Now().UTC()}},
	)
	return err
}

// Follow records the relation on both documents; $addToSet keeps it idempotent.
func (r *MongoUserRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	if _, err := r.col.UpdateOne(ctx,
		bson.M{"_id": followerID},
		bson.M{"$addToSet": bson.M{"following": followeeID}},
	); err != nil {
		return err
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": followeeID},
		bson.M{"$addToSet": bson.M{"followers": followerID}},
	)
	return err
}

func (r *MongoUserRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if _, err := r.col.UpdateOne(ctx,
		bson.M{"_id": followerID},
		bson.M{"$pull": bson.M{"following": followeeID}},
	); err != nil {
		return err
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": followeeID},
		bson.M{"$pull": bson.M{"followers": followerID}},
	)
	return err
}
