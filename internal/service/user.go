package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HardikMehta2003/vidstream/internal/apperr"
	"github.com/HardikMehta2003/vidstream/internal/domain"
	"github.com/HardikMehta2003/vidstream/internal/security"
)

// UserRepository is the credential store contract consumed by the service.
// Find methods return nil without error when no user matches.
type UserRepository interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	Insert(ctx context.Context, user *domain.User) error
	UpdateFields(ctx context.Context, id primitive.ObjectID, set map[string]any, unset ...string) error
	ChannelProfile(ctx context.Context, username string, viewerID primitive.ObjectID) (*domain.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]domain.WatchHistoryEntry, error)
}

// MediaStore uploads a local temp file and returns its hosted URL. The
// implementation removes the temp file on every path.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// UserService orchestrates the user lifecycle: registration, login, logout,
// session refresh, password change, and profile operations.
type UserService struct {
	repo   UserRepository
	media  MediaStore
	hasher *security.PasswordHasher
	tokens *security.JWTManager
}

// NewUserService creates a new user service
func NewUserService(repo UserRepository, media MediaStore, hasher *security.PasswordHasher, tokens *security.JWTManager) *UserService {
	return &UserService{
		repo:   repo,
		media:  media,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register creates a new user account. The avatar upload is required and a
// failed cover image upload is tolerated. The stored username is lowercase.
func (s *UserService) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	username := strings.ToLower(strings.TrimSpace(input.Username))
	password := strings.TrimSpace(input.Password)

	if fullName == "" || email == "" || username == "" || password == "" {
		return nil, apperr.Validation("all fields are required")
	}

	existing, err := s.repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check existing user")
	}
	if existing != nil {
		return nil, apperr.Conflict("user with this username or email already exists")
	}

	if input.AvatarPath == "" {
		return nil, apperr.Validation("avatar file is required")
	}

	avatarURL, err := s.media.Upload(ctx, input.AvatarPath)
	if err != nil {
		return nil, apperr.Upload("avatar upload failed")
	}

	coverImageURL := ""
	if input.CoverImagePath != "" {
		coverImageURL, err = s.media.Upload(ctx, input.CoverImagePath)
		if err != nil {
			// Cover image is optional, a failed upload does not abort registration.
			log.Warn().Err(err).Str("username", username).Msg("cover image upload failed")
			coverImageURL = ""
		}
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	now := time.Now()
	user := &domain.User{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     avatarURL,
		CoverImage: coverImageURL,
		Password:   hashed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		if apperr.IsConflict(err) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to create user")
	}

	created, err := s.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to read created user")
	}
	if created == nil {
		return nil, apperr.Internal(errors.New("user missing after insert"), "user creation failed")
	}

	return created, nil
}

// Login verifies the credentials and issues a fresh token pair. The new
// refresh token replaces any previously stored one, revoking the prior
// session.
func (s *UserService) Login(ctx context.Context, input domain.LoginInput) (*domain.User, *domain.TokenPair, error) {
	email := strings.TrimSpace(input.Email)
	password := strings.TrimSpace(input.Password)

	if email == "" || password == "" {
		return nil, nil, apperr.Validation("email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to find user")
	}
	if user == nil {
		return nil, nil, apperr.NotFound("user not found")
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, nil, apperr.Unauthorized("invalid user credentials")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Logout clears the stored refresh token, invalidating the session.
func (s *UserService) Logout(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.repo.UpdateFields(ctx, userID, nil, "refreshToken"); err != nil {
		if apperr.IsNotFound(err) {
			return err
		}
		return apperr.Internal(err, "failed to clear refresh token")
	}
	return nil
}

// RefreshSession rotates the refresh token. The presented token must verify
// and must equal the token currently stored on the user record, which is
// what invalidates rotated or revoked tokens.
func (s *UserService) RefreshSession(ctx context.Context, incoming string) (*domain.TokenPair, error) {
	if incoming == "" {
		return nil, apperr.Unauthorized("refresh token is required")
	}

	userID, err := s.tokens.VerifyRefreshToken(incoming)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to find user")
	}
	if user == nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	if user.RefreshToken == "" || user.RefreshToken != incoming {
		return nil, apperr.Unauthorized("refresh token expired or already used")
	}

	return s.issueTokenPair(ctx, user)
}

// ChangePassword verifies the old password and stores the new hash. The
// stored refresh token is cleared so existing sessions cannot outlive the
// old credential.
func (s *UserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, input domain.ChangePasswordInput) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return apperr.Internal(err, "failed to find user")
	}
	if user == nil {
		return apperr.NotFound("user not found")
	}

	if !s.hasher.Verify(input.OldPassword, user.Password) {
		return apperr.Unauthorized("invalid old password")
	}

	hashed, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return apperr.Internal(err, "failed to hash password")
	}

	if err := s.repo.UpdateFields(ctx, userID, map[string]any{"password": hashed}, "refreshToken"); err != nil {
		return apperr.Internal(err, "failed to update password")
	}
	return nil
}

// CurrentUser returns the authenticated user's record.
func (s *UserService) CurrentUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to find user")
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

// UpdateAccount updates the display name and email.
func (s *UserService) UpdateAccount(ctx context.Context, userID primitive.ObjectID, input domain.UpdateAccountInput) (*domain.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	if fullName == "" || email == "" {
		return nil, apperr.Validation("fullName and email are required")
	}

	err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"fullName": fullName,
		"email":    email,
	})
	if err != nil {
		if apperr.IsConflict(err) || apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to update account")
	}

	return s.CurrentUser(ctx, userID)
}

// UpdateAvatar uploads a new avatar and persists its URL. Only the newly
// uploaded local temp file is cleaned up; the previous remote asset stays.
func (s *UserService) UpdateAvatar(ctx context.Context, userID primitive.ObjectID, localPath string) (*domain.User, error) {
	return s.updateImage(ctx, userID, localPath, "avatar")
}

// UpdateCoverImage uploads a new cover image and persists its URL.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID primitive.ObjectID, localPath string) (*domain.User, error) {
	return s.updateImage(ctx, userID, localPath, "coverImage")
}

func (s *UserService) updateImage(ctx context.Context, userID primitive.ObjectID, localPath, field string) (*domain.User, error) {
	if localPath == "" {
		return nil, apperr.Validation(field + " file is required")
	}

	url, err := s.media.Upload(ctx, localPath)
	if err != nil {
		return nil, apperr.Upload(field + " upload failed")
	}

	if err := s.repo.UpdateFields(ctx, userID, map[string]any{field: url}); err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to update "+field)
	}

	return s.CurrentUser(ctx, userID)
}

// ChannelProfile returns the aggregated channel view for a username.
func (s *UserService) ChannelProfile(ctx context.Context, username string, viewerID primitive.ObjectID) (*domain.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, apperr.Validation("username is required")
	}

	profile, err := s.repo.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load channel profile")
	}
	if profile == nil {
		return nil, apperr.NotFound("channel does not exist")
	}
	return profile, nil
}

// WatchHistory returns the user's watched videos with their owners.
func (s *UserService) WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]domain.WatchHistoryEntry, error) {
	entries, err := s.repo.WatchHistory(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load watch history")
	}
	if entries == nil {
		entries = []domain.WatchHistoryEntry{}
	}
	return entries, nil
}

// issueTokenPair mints both tokens and persists the refresh token on the
// user record (rotation). Failures are normalized to internal errors.
func (s *UserService) issueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate access token")
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate refresh token")
	}

	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{"refreshToken": refreshToken}); err != nil {
		return nil, apperr.Internal(err, "failed to persist refresh token")
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}
