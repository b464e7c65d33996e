package models

import "time"

// Post is a user post with an optional image stored in object storage.
// Likes holds the ids of users who liked the post (set semantics).
type Post struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	AuthorID  string    `bson:"authorId" json:"authorId"`
	Caption   string    `bson:"caption" json:"caption"`
	ImageURL  string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ImageKey  string    `bson:"imageKey,omitempty" json:"-"`
	Likes     []string  `bson:"likes,omitempty" json:"likes,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Comment belongs to a post.
type Comment struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	PostID    string    `bson:"postId" json:"postId"`
	AuthorID  string    `bson:"authorId" json:"authorId"`
	Body      string    `bson:"body" json:"body"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Dashboard aggregates a user's activity counters.
type Dashboard struct {
	UserID        string `json:"userId"`
	PostCount     int64  `json:"postCount"`
	LikesReceived int64  `json:"likesReceived"`
	CommentCount  int64  `json:"commentCount"`
	Followers     int    `json:"followers"`
	Following     int    `json:"following"`
}
