package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HardikMehta2003/vidstream/internal/apperr"
	"github.com/HardikMehta2003/vidstream/internal/domain"
)

const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
	videosCollection        = "videos"
)

// UserRepository handles persistence of user records
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) users() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

// EnsureIndexes creates the unique indexes on username and email. The
// service layer pre-checks for duplicates, but only these indexes make the
// uniqueness invariant hold under concurrent registration.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// FindByUsernameOrEmail returns the user matching either field, or nil when
// no user matches.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}
	return r.findOne(ctx, filter)
}

// FindByEmail returns the user with the given email, or nil
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByID returns the user with the given id, or nil
func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.users().FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// Insert stores a new user and fills in its generated id. A duplicate
// username or email surfaces as a conflict error.
func (r *UserRepository) Insert(ctx context.Context, user *domain.User) error {
	res, err := r.users().InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("username or email already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

// UpdateFields applies a partial update to the user record. Fields named in
// unset are removed from the document.
func (r *UserRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, set map[string]any, unset ...string) error {
	update := bson.M{}

	setDoc := bson.M{"updatedAt": time.Now()}
	for k, v := range set {
		setDoc[k] = v
	}
	update["$set"] = setDoc

	if len(unset) > 0 {
		unsetDoc := bson.M{}
		for _, field := range unset {
			unsetDoc[field] = ""
		}
		update["$unset"] = unsetDoc
	}

	res, err := r.users().UpdateByID(ctx, id, update)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("username or email already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// ChannelProfile aggregates a channel's public profile together with its
// subscriber counts and whether the viewer subscribes to it.
func (r *UserRepository) ChannelProfile(ctx context.Context, username string, viewerID primitive.ObjectID) (*domain.ChannelProfile, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": username}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         subscriptionsCollection,
			"localField":   "_id",
			"foreignField": "channel",
			"as":           "subscribers",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         subscriptionsCollection,
			"localField":   "_id",
			"foreignField": "subscriber",
			"as":           "subscribedTo",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"subscriberCount":      bson.M{"$size": "$subscribers"},
			"channelsSubscribedTo": bson.M{"$size": "$subscribedTo"},
			"isSubscribed": bson.M{
				"$in": bson.A{viewerID, "$subscribers.subscriber"},
			},
		}}},
		{{Key: "$project", Value: bson.M{
			"username":             1,
			"fullName":             1,
			"email":                1,
			"avatar":               1,
			"coverImage":           1,
			"subscriberCount":      1,
			"channelsSubscribedTo": 1,
			"isSubscribed":         1,
		}}},
	}

	cursor, err := r.users().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate channel profile: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []domain.ChannelProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode channel profile: %w", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// WatchHistory joins the user's watched video ids against the videos
// collection, attaching each video's sanitized owner.
func (r *UserRepository) WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]domain.WatchHistoryEntry, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         videosCollection,
			"localField":   "watchHistory",
			"foreignField": "_id",
			"as":           "watchNew",
			"pipeline": bson.A{
				bson.M{"$lookup": bson.M{
					"from":         usersCollection,
					"localField":   "owner",
					"foreignField": "_id",
					"as":           "owner",
					"pipeline": bson.A{
						bson.M{"$project": bson.M{
							"username": 1,
							"fullName": 1,
							"avatar":   1,
						}},
					},
				}},
				bson.M{"$addFields": bson.M{
					"owner": bson.M{"$first": "$owner"},
				}},
			},
		}}},
		{{Key: "$project", Value: bson.M{"watchNew": 1}}},
	}

	cursor, err := r.users().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate watch history: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Watched []domain.WatchHistoryEntry `bson:"watchNew"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode watch history: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Watched, nil
}
