package models

import "time"

// User represents an application user persisted in MongoDB.
// PasswordHash and RefreshToken are never serialized to JSON.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	FullName     string    `bson:"fullName" json:"fullName"`
	Bio          string    `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL    string    `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	AvatarKey    string    `bson:"avatarKey,omitempty" json:"-"`
	Admin        bool      `bson:"isAdmin" json:"isAdmin"`
	Followers    []string  `bson:"followers,omitempty" json:"followers,omitempty"`
	Following    []string  `bson:"following,omitempty" json:"following,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
