package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/HardikMehta2003/vidstream/internal/apperr"
	"github.com/HardikMehta2003/vidstream/internal/domain"
	"github.com/HardikMehta2003/vidstream/internal/security"
)

func newTestService(repo *MockUserRepository, media *MockMediaStore) *UserService {
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	tokens := security.NewJWTManager("access-secret-for-tests-32chars!", "refresh-secret-for-tests-32char", 15*time.Minute, 240*time.Hour)
	return NewUserService(repo, media, hasher, tokens)
}

func registerInput() domain.RegisterInput {
	return domain.RegisterInput{
		FullName:   "Ann Lee",
		Email:      "ann@x.com",
		Username:   "AnnLee",
		Password:   "secret1",
		AvatarPath: "/tmp/a.png",
	}
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(MockUserRepository)
		media := new(MockMediaStore)
		svc := newTestService(repo, media)

		id := primitive.NewObjectID()
		repo.On("FindByUsernameOrEmail", ctx, "annlee", "ann@x.com").Return(nil, nil)
		media.On("Upload", ctx, "/tmp/a.png").Return("https://cdn.example.com/a.png", nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = id
		}).Return(nil)
		repo.On("FindByID", ctx, id).Return(&domain.User{
			ID:       id,
			Username: "annlee",
			Email:    "ann@x.com",
			FullName: "Ann Lee",
			Avatar:   "https://cdn.example.com/a.png",
		}, nil)

		user, err := svc.Register(ctx, registerInput())
		assert.NoError(t, err)
		assert.Equal(t, "annlee", user.Username)
		assert.Equal(t, "https://cdn.example.com/a.png", user.Avatar)

		inserted := repo.Calls[1].Arguments.Get(1).(*domain.User)
		assert.Equal(t, "annlee", inserted.Username)
		assert.NotEqual(t, "secret1", inserted.Password)

		repo.AssertExpectations(t)
		media.AssertExpectations(t)
	})

	t.Run("empty fields", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		input := registerInput()
		input.FullName = "   "

		_, err := svc.Register(ctx, input)
		assert.True(t, apperr.IsValidation(err))
		repo.AssertNotCalled(t, "Insert")
	})

	t.Run("duplicate user", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		repo.On("FindByUsernameOrEmail", ctx, "annlee", "ann@x.com").Return(&domain.User{Username: "annlee"}, nil)

		_, err := svc.Register(ctx, registerInput())
		assert.True(t, apperr.IsConflict(err))
		repo.AssertNotCalled(t, "Insert")
	})

	t.Run("missing avatar", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		repo.On("FindByUsernameOrEmail", ctx, "annlee", "ann@x.com").Return(nil, nil)

		input := registerInput()
		input.AvatarPath = ""

		_, err := svc.Register(ctx, input)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("avatar upload failure aborts before any write", func(t *testing.T) {
		repo := new(MockUserRepository)
		media := new(MockMediaStore)
		svc := newTestService(repo, media)

		repo.On("FindByUsernameOrEmail", ctx, "annlee", "ann@x.com").Return(nil, nil)
		media.On("Upload", ctx, "/tmp/a.png").Return("", assert.AnError)

		_, err := svc.Register(ctx, registerInput())
		assert.True(t, apperr.IsUpload(err))
		repo.AssertNotCalled(t, "Insert")
	})

	t.Run("cover image upload failure is tolerated", func(t *testing.T) {
		repo := new(MockUserRepository)
		media := new(MockMediaStore)
		svc := newTestService(repo, media)

		id := primitive.NewObjectID()
		repo.On("FindByUsernameOrEmail", ctx, "annlee", "ann@x.com").Return(nil, nil)
		media.On("Upload", ctx, "/tmp/a.png").Return("https://cdn.example.com/a.png", nil)
		media.On("Upload", ctx, "/tmp/c.png").Return("", assert.AnError)
		repo.On("Insert", ctx, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = id
		}).Return(nil)
		repo.On("FindByID", ctx, id).Return(&domain.User{ID: id, Username: "annlee"}, nil)

		input := registerInput()
		input.CoverImagePath = "/tmp/c.png"

		user, err := svc.Register(ctx, input)
		assert.NoError(t, err)
		assert.NotNil(t, user)

		inserted := repo.Calls[1].Arguments.Get(1).(*domain.User)
		assert.Empty(t, inserted.CoverImage)
	})

	t.Run("missing after insert", func(t *testing.T) {
		repo := new(MockUserRepository)
		media := new(MockMediaStore)
		svc := newTestService(repo, media)

		repo.On("FindByUsernameOrEmail", ctx, "annlee", "ann@x.com").Return(nil, nil)
		media.On("Upload", ctx, "/tmp/a.png").Return("https://cdn.example.com/a.png", nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
		repo.On("FindByID", ctx, mock.Anything).Return(nil, nil)

		_, err := svc.Register(ctx, registerInput())
		assert.True(t, apperr.IsInternal(err))
	})
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	digest, _ := hasher.Hash("secret1")

	t.Run("success persists rotated refresh token", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		user := &domain.User{
			ID:       primitive.NewObjectID(),
			Username: "annlee",
			Email:    "ann@x.com",
			Password: digest,
		}
		repo.On("FindByEmail", ctx, "ann@x.com").Return(user, nil)

		var persisted string
		repo.On("UpdateFields", ctx, user.ID, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			persisted = args.Get(2).(map[string]any)["refreshToken"].(string)
		}).Return(nil)

		got, pair, err := svc.Login(ctx, domain.LoginInput{Email: "ann@x.com", Password: "secret1"})
		assert.NoError(t, err)
		assert.Equal(t, "annlee", got.Username)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, pair.RefreshToken, persisted)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		repo.On("FindByEmail", ctx, "ghost@x.com").Return(nil, nil)

		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "ghost@x.com", Password: "secret1"})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		repo.On("FindByEmail", ctx, "ann@x.com").Return(&domain.User{Password: digest}, nil)

		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "ann@x.com", Password: "wrong"})
		assert.True(t, apperr.IsUnauthorized(err))
		repo.AssertNotCalled(t, "UpdateFields")
	})

	t.Run("empty input", func(t *testing.T) {
		svc := newTestService(new(MockUserRepository), new(MockMediaStore))
		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "", Password: " "})
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestUserService_RefreshSession(t *testing.T) {
	ctx := context.Background()

	newUserWithSession := func(t *testing.T, repo *MockUserRepository, svc *UserService) (*domain.User, *domain.TokenPair) {
		t.Helper()
		hasher := security.NewPasswordHasher(bcrypt.MinCost)
		digest, _ := hasher.Hash("secret1")
		user := &domain.User{
			ID:       primitive.NewObjectID(),
			Username: "annlee",
			Email:    "ann@x.com",
			Password: digest,
		}
		repo.On("FindByEmail", ctx, "ann@x.com").Return(user, nil)
		// Persisting the refresh token mutates the shared record, as the
		// real store would.
		repo.On("UpdateFields", ctx, user.ID, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			if set, ok := args.Get(2).(map[string]any); ok && set != nil {
				if tok, ok := set["refreshToken"].(string); ok {
					user.RefreshToken = tok
				}
			}
		}).Return(nil)
		repo.On("FindByID", ctx, user.ID).Return(user, nil)

		_, pair, err := svc.Login(ctx, domain.LoginInput{Email: "ann@x.com", Password: "secret1"})
		assert.NoError(t, err)
		return user, pair
	}

	t.Run("rotation invalidates prior refresh token", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))
		_, pair1 := newUserWithSession(t, repo, svc)

		pair2, err := svc.RefreshSession(ctx, pair1.RefreshToken)
		assert.NoError(t, err)
		assert.NotEmpty(t, pair2.AccessToken)

		// The first token was rotated out, presenting it again must fail.
		_, err = svc.RefreshSession(ctx, pair1.RefreshToken)
		assert.True(t, apperr.IsUnauthorized(err))

		// The current token still works.
		_, err = svc.RefreshSession(ctx, pair2.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		svc := newTestService(new(MockUserRepository), new(MockMediaStore))
		_, err := svc.RefreshSession(ctx, "")
		assert.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		svc := newTestService(new(MockUserRepository), new(MockMediaStore))
		_, err := svc.RefreshSession(ctx, "not-a-jwt")
		assert.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("token signed with a different secret", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		other := security.NewJWTManager("other-access-secret-32-chars!!!!", "other-refresh-secret-32-chars!!", time.Minute, time.Hour)
		forged, err := other.IssueRefreshToken(&domain.User{ID: primitive.NewObjectID()})
		assert.NoError(t, err)

		_, err = svc.RefreshSession(ctx, forged)
		assert.True(t, apperr.IsUnauthorized(err))
		repo.AssertNotCalled(t, "FindByID")
	})

	t.Run("stored token differs from presented token", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))
		user, pair := newUserWithSession(t, repo, svc)

		// Simulate reuse of a rotated token: the store already holds a
		// different value.
		user.RefreshToken = "something-else"

		_, err := svc.RefreshSession(ctx, pair.RefreshToken)
		assert.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("user no longer exists", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		tokens := security.NewJWTManager("access-secret-for-tests-32chars!", "refresh-secret-for-tests-32char", 15*time.Minute, 240*time.Hour)
		gone := &domain.User{ID: primitive.NewObjectID()}
		token, _ := tokens.IssueRefreshToken(gone)

		repo.On("FindByID", ctx, gone.ID).Return(nil, nil)

		_, err := svc.RefreshSession(ctx, token)
		assert.True(t, apperr.IsUnauthorized(err))
	})
}

func TestUserService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	digest, _ := hasher.Hash("old-pass")

	t.Run("round trip", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		user := &domain.User{ID: primitive.NewObjectID(), Password: digest}
		repo.On("FindByID", ctx, user.ID).Return(user, nil)

		var newDigest string
		var cleared []string
		repo.On("UpdateFields", ctx, user.ID, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			newDigest = args.Get(2).(map[string]any)["password"].(string)
			cleared = args.Get(3).([]string)
		}).Return(nil)

		err := svc.ChangePassword(ctx, user.ID, domain.ChangePasswordInput{OldPassword: "old-pass", NewPassword: "new-pass"})
		assert.NoError(t, err)

		assert.False(t, hasher.Verify("old-pass", newDigest))
		assert.True(t, hasher.Verify("new-pass", newDigest))
		assert.Contains(t, cleared, "refreshToken")
	})

	t.Run("wrong old password", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		user := &domain.User{ID: primitive.NewObjectID(), Password: digest}
		repo.On("FindByID", ctx, user.ID).Return(user, nil)

		err := svc.ChangePassword(ctx, user.ID, domain.ChangePasswordInput{OldPassword: "nope", NewPassword: "new-pass"})
		assert.True(t, apperr.IsUnauthorized(err))
		repo.AssertNotCalled(t, "UpdateFields")
	})
}

func TestUserService_Logout(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMediaStore))

	id := primitive.NewObjectID()
	var set map[string]any
	var unset []string
	repo.On("UpdateFields", ctx, id, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		set, _ = args.Get(2).(map[string]any)
		unset = args.Get(3).([]string)
	}).Return(nil)

	err := svc.Logout(ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, set)
	assert.Equal(t, []string{"refreshToken"}, unset)
}

func TestUserService_UpdateImage(t *testing.T) {
	ctx := context.Background()

	t.Run("avatar updated", func(t *testing.T) {
		repo := new(MockUserRepository)
		media := new(MockMediaStore)
		svc := newTestService(repo, media)

		id := primitive.NewObjectID()
		media.On("Upload", ctx, "/tmp/new.png").Return("https://cdn.example.com/new.png", nil)
		repo.On("UpdateFields", ctx, id, map[string]any{"avatar": "https://cdn.example.com/new.png"}, mock.Anything).Return(nil)
		repo.On("FindByID", ctx, id).Return(&domain.User{ID: id, Avatar: "https://cdn.example.com/new.png"}, nil)

		user, err := svc.UpdateAvatar(ctx, id, "/tmp/new.png")
		assert.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/new.png", user.Avatar)
	})

	t.Run("missing file", func(t *testing.T) {
		svc := newTestService(new(MockUserRepository), new(MockMediaStore))
		_, err := svc.UpdateAvatar(ctx, primitive.NewObjectID(), "")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("upload failure", func(t *testing.T) {
		repo := new(MockUserRepository)
		media := new(MockMediaStore)
		svc := newTestService(repo, media)

		media.On("Upload", ctx, "/tmp/new.png").Return("", assert.AnError)

		_, err := svc.UpdateCoverImage(ctx, primitive.NewObjectID(), "/tmp/new.png")
		assert.True(t, apperr.IsUpload(err))
		repo.AssertNotCalled(t, "UpdateFields")
	})
}

func TestUserService_ChannelProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		viewer := primitive.NewObjectID()
		repo.On("ChannelProfile", ctx, "annlee", viewer).Return(&domain.ChannelProfile{
			Username:        "annlee",
			SubscriberCount: 3,
		}, nil)

		profile, err := svc.ChannelProfile(ctx, " AnnLee ", viewer)
		assert.NoError(t, err)
		assert.Equal(t, int64(3), profile.SubscriberCount)
	})

	t.Run("unknown channel", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newTestService(repo, new(MockMediaStore))

		repo.On("ChannelProfile", ctx, "ghost", mock.Anything).Return(nil, nil)

		_, err := svc.ChannelProfile(ctx, "ghost", primitive.NewObjectID())
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestUserService_WatchHistory(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc := newTestService(repo, new(MockMediaStore))

	id := primitive.NewObjectID()
	repo.On("WatchHistory", ctx, id).Return(nil, nil)

	entries, err := svc.WatchHistory(ctx, id)
	assert.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
