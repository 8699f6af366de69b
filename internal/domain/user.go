package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a platform user. Password and RefreshToken are never
// serialized to JSON, so any User returned to a client is already sanitized.
type User struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Username     string               `json:"username" bson:"username"`
	Email        string               `json:"email" bson:"email"`
	FullName     string               `json:"fullName" bson:"fullName"`
	Avatar       string               `json:"avatar" bson:"avatar"`
	CoverImage   string               `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	Password     string               `json:"-" bson:"password"`
	RefreshToken string               `json:"-" bson:"refreshToken,omitempty"`
	WatchHistory []primitive.ObjectID `json:"-" bson:"watchHistory,omitempty"`
	CreatedAt    time.Time            `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time            `json:"updated_at" bson:"updatedAt"`
}

// RegisterInput carries the fields of a registration request. The file paths
// point at local temp files written by the HTTP boundary.
type RegisterInput struct {
	FullName       string `json:"fullName" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email,max=255"`
	Username       string `json:"username" validate:"required,min=3,max=30"`
	Password       string `json:"password" validate:"required,min=6,max=72"`
	AvatarPath     string `json:"-"`
	CoverImagePath string `json:"-"`
}

// LoginInput represents login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordInput represents a password change request.
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// UpdateAccountInput represents a profile field update.
type UpdateAccountInput struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// TokenPair bundles the credentials issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ChannelProfile is the aggregated public view of a user's channel.
type ChannelProfile struct {
	ID              primitive.ObjectID `json:"id" bson:"_id"`
	Username        string             `json:"username" bson:"username"`
	FullName        string             `json:"fullName" bson:"fullName"`
	Email           string             `json:"email" bson:"email"`
	Avatar          string             `json:"avatar" bson:"avatar"`
	CoverImage      string             `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	SubscriberCount int64              `json:"subscriberCount" bson:"subscriberCount"`
	SubscribedTo    int64              `json:"channelsSubscribedTo" bson:"channelsSubscribedTo"`
	IsSubscribed    bool               `json:"isSubscribed" bson:"isSubscribed"`
}

// VideoOwner is the sanitized owner embedded in watch history entries.
type VideoOwner struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Username string             `json:"username" bson:"username"`
	FullName string             `json:"fullName" bson:"fullName"`
	Avatar   string             `json:"avatar" bson:"avatar"`
}

// WatchHistoryEntry is a watched video joined with its owner.
type WatchHistoryEntry struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Thumbnail   string             `json:"thumbnail" bson:"thumbnail"`
	VideoFile   string             `json:"videoFile" bson:"videoFile"`
	Duration    float64            `json:"duration" bson:"duration"`
	Views       int64              `json:"views" bson:"views"`
	Owner       VideoOwner         `json:"owner" bson:"owner"`
}
