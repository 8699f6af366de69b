package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HardikMehta2003/vidstream/internal/api/middleware"
	"github.com/HardikMehta2003/vidstream/internal/api/response"
	"github.com/HardikMehta2003/vidstream/internal/domain"
)

var validate = validator.New()

// UserLifecycle is the service contract the handler depends on.
type UserLifecycle interface {
	Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, input domain.LoginInput) (*domain.User, *domain.TokenPair, error)
	Logout(ctx context.Context, userID primitive.ObjectID) error
	RefreshSession(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, input domain.ChangePasswordInput) error
	CurrentUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
	UpdateAccount(ctx context.Context, userID primitive.ObjectID, input domain.UpdateAccountInput) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID primitive.ObjectID, localPath string) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, userID primitive.ObjectID, localPath string) (*domain.User, error)
	ChannelProfile(ctx context.Context, username string, viewerID primitive.ObjectID) (*domain.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]domain.WatchHistoryEntry, error)
}

// UserHandler handles the user endpoints
type UserHandler struct {
	users     UserLifecycle
	tempDir   string
	maxUpload int64
}

// NewUserHandler creates a new user handler. Uploaded files are staged in
// tempDir before being handed to the media store.
func NewUserHandler(users UserLifecycle, tempDir string, maxUpload int64) *UserHandler {
	os.MkdirAll(tempDir, 0o755)
	return &UserHandler{users: users, tempDir: tempDir, maxUpload: maxUpload}
}

// Register handles user registration (multipart form with avatar and an
// optional cover image).
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}

	input := domain.RegisterInput{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	avatarPath, err := h.saveUpload(r, "avatar")
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	coverPath, err := h.saveUpload(r, "coverImage")
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	// The media store removes temp files it touched; these cover the exit
	// paths where the upload is never attempted.
	defer os.Remove(avatarPath)
	defer os.Remove(coverPath)

	input.AvatarPath = avatarPath
	input.CoverImagePath = coverPath

	user, err := h.users.Register(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, user, "user created successfully")
}

// Login handles user login and sets the session cookies.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	user, pair, err := h.users.Login(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	setAuthCookies(w, pair)
	response.OK(w, map[string]any{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "user logged in successfully")
}

// Logout clears the stored refresh token and the session cookies.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.users.Logout(r.Context(), userID); err != nil {
		response.FromError(w, err)
		return
	}

	clearAuthCookies(w)
	response.OK(w, map[string]any{}, "user logged out")
}

// Refresh rotates the session using the refresh token from the cookie or
// the request body.
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie("refreshToken"); err == nil {
		token = cookie.Value
	}
	if token == "" && r.Body != nil {
		var input struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err == nil {
			token = input.RefreshToken
		}
	}

	pair, err := h.users.RefreshSession(r.Context(), token)
	if err != nil {
		response.FromError(w, err)
		return
	}

	setAuthCookies(w, pair)
	response.OK(w, pair, "access token refreshed")
}

// ChangePassword verifies the old password and stores the new one.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.ChangePasswordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, input); err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, map[string]any{}, "password changed successfully")
}

// Me returns the current authenticated user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	user, err := h.users.CurrentUser(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, user, "current user fetched")
}

// UpdateAccount updates display name and email.
func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.UpdateAccountInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	user, err := h.users.UpdateAccount(r.Context(), userID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, user, "account updated successfully")
}

// UpdateAvatar replaces the user's avatar image.
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", func(ctx context.Context, userID primitive.ObjectID, path string) (*domain.User, error) {
		return h.users.UpdateAvatar(ctx, userID, path)
	})
}

// UpdateCoverImage replaces the user's cover image.
func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", func(ctx context.Context, userID primitive.ObjectID, path string) (*domain.User, error) {
		return h.users.UpdateCoverImage(ctx, userID, path)
	})
}

func (h *UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field string, update func(context.Context, primitive.ObjectID, string) (*domain.User, error)) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}

	path, err := h.saveUpload(r, field)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	defer os.Remove(path)

	user, err := update(r.Context(), userID, path)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, user, field+" updated successfully")
}

// ChannelProfile returns the aggregated channel view for a username.
func (h *UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	profile, err := h.users.ChannelProfile(r.Context(), chi.URLParam(r, "username"), viewerID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, profile, "channel profile fetched")
}

// WatchHistory returns the user's watch history.
func (h *UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	history, err := h.users.WatchHistory(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, history, "watch history fetched")
}

// saveUpload writes the named multipart file to the temp dir under a unique
// name and returns its path. A missing file is not an error; the service
// decides whether the field was required.
func (h *UserHandler) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", nil
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	destPath := filepath.Join(h.tempDir, uuid.New().String()+ext)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(destPath)
		return "", err
	}

	return destPath, nil
}

func setAuthCookies(w http.ResponseWriter, pair *domain.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{"accessToken", "refreshToken"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
		})
	}
}

// validationMessage flattens validator errors into a readable message.
func validationMessage(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msg := ""
	for _, e := range validationErrors {
		if msg != "" {
			msg += "; "
		}
		switch e.Tag() {
		case "required":
			msg += e.Field() + " is required"
		case "email":
			msg += e.Field() + " must be a valid email"
		case "min":
			msg += e.Field() + " must be at least " + e.Param() + " characters"
		case "max":
			msg += e.Field() + " must be at most " + e.Param() + " characters"
		default:
			msg += e.Field() + " failed validation on " + e.Tag()
		}
	}
	return msg
}
