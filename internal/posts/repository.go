package posts

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minglehq/mingle/internal/models"
)

// Repository defines persistence operations for posts and comments.
type Repository interface {
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListRecent(ctx context.Context, limit int64) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int64) ([]*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	AddComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentsByPost(ctx context.Context, postID string) error
	AuthorStats(ctx context.Context, authorID string) (postCount, likesReceived, commentCount int64, err error)
}

// MongoRepository implements Repository over the posts and comments collections.
type MongoRepository struct {
	posts    *mongo.Collection
	comments *mongo.Collection
}

func NewMongoRepository(posts, comments *mongo.Collection) *MongoRepository {
	return &MongoRepository{posts: posts, comments: comments}
}

func (r *MongoRepository) CreatePost(ctx context.Context, p *models.Post) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.posts.InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M, limit int64) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cur, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.Post
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) ListRecent(ctx context.Context, limit int64) ([]*models.Post, error) {
	return r.list(ctx, bson.M{}, limit)
}

func (r *MongoRepository) ListByAuthor(ctx context.Context, authorID string, limit int64) ([]*models.Post, error) {
	return r.list(ctx, bson.M{"authorId": authorID}, limit)
}

func (r *MongoRepository) DeletePost(ctx context.Context, id string) error {
	_, err := r.posts.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Like uses $addToSet so liking twice has no additional effect.
func (r *MongoRepository) Like(ctx context.Context, postID, userID string) error {
	_, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$addToSet": bson.M{"likes": userID}},
	)
	return err
}

func (r *MongoRepository) Unlike(ctx context.Context, postID, userID string) error {
	_, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$pull": bson.M{"likes": userID}},
	)
	return err
}

func (r *MongoRepository) AddComment(ctx context.Context, c *models.Comment) error {
	c.CreatedAt = time.Now().UTC()
	_, err := r.comments.InsertOne(ctx, c)
	return err
}

func (r *MongoRepository) ListComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.comments.Find(ctx, bson.M{"postId": postID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.Comment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := r.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoRepository) DeleteComment(ctx context.Context, id string) error {
	_, err := r.comments.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) DeleteCommentsByPost(ctx context.Context, postID string) error {
	_, err := r.comments.DeleteMany(ctx, bson.M{"postId": postID})
	return err
}

// AuthorStats aggregates post count and likes received; comment count is a
// plain CountDocuments over the author's posts' comments.
func (r *MongoRepository) AuthorStats(ctx context.Context, authorID string) (int64, int64, int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"authorId": authorID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"posts": bson.M{"$sum": 1},
			"likes": bson.M{"$sum": bson.M{"$size": bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}}},
		}}},
	}
	cur, err := r.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, 0, err
	}
	defer cur.Close(ctx)
	var agg []struct {
		Posts int64 `bson:"posts"`
		Likes int64 `bson:"likes"`
	}
	if err := cur.All(ctx, &agg); err != nil {
		return 0, 0, 0, err
	}
	var postCount, likes int64
	if len(agg) > 0 {
		postCount, likes = agg[0].Posts, agg[0].Likes
	}

	// comments written on this author's posts
	ids, err := r.posts.Distinct(ctx, "_id", bson.M{"authorId": authorID})
	if err != nil {
		return 0, 0, 0, err
	}
	var comments int64
	if len(ids) > 0 {
		comments, err = r.comments.CountDocuments(ctx, bson.M{"postId": bson.M{"$in": ids}})
		if err != nil {
			return 0, 0, 0, err
		}
	}
	return postCount, likes, comments, nil
}
