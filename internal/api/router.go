package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/HardikMehta2003/vidstream/internal/api/handler"
	custommiddleware "github.com/HardikMehta2003/vidstream/internal/api/middleware"
	"github.com/HardikMehta2003/vidstream/internal/config"
	"github.com/HardikMehta2003/vidstream/internal/repository/mongo"
	"github.com/HardikMehta2003/vidstream/internal/repository/redis"
	"github.com/HardikMehta2003/vidstream/internal/security"
	"github.com/HardikMehta2003/vidstream/internal/service"
	"github.com/HardikMehta2003/vidstream/internal/storage"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *mongo.DB, redisClient *redis.Client) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Security components
	jwtManager := security.NewJWTManager(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	hasher := security.NewPasswordHasher(0)

	// Repositories
	userRepo := mongo.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(context.Background()); err != nil {
		return nil, err
	}

	// Media store
	mediaStore, err := storage.NewMediaStore(context.Background(), cfg.Storage)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bucket", cfg.Storage.Bucket).Msg("media store initialized")

	// Rate limiter
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)

	// Services
	userService := service.NewUserService(userRepo, mediaStore, hasher, jwtManager)

	// Handlers
	userHandler := handler.NewUserHandler(userService, cfg.Uploads.TempDir, cfg.Uploads.MaxSizeBytes)

	// Middleware
	authMiddleware := custommiddleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := custommiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db))

		r.Route("/users", func(r chi.Router) {
			// Public routes, rate limited by client IP
			r.Group(func(r chi.Router) {
				r.Use(rateLimitMiddleware.Limit)

				r.Post("/register", userHandler.Register)
				r.Post("/login", userHandler.Login)
				r.Post("/refresh", userHandler.Refresh)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)

				r.Post("/logout", userHandler.Logout)
				r.Post("/change-password", userHandler.ChangePassword)
				r.Get("/me", userHandler.Me)
				r.Patch("/me", userHandler.UpdateAccount)
				r.Patch("/me/avatar", userHandler.UpdateAvatar)
				r.Patch("/me/cover-image", userHandler.UpdateCoverImage)
				r.Get("/channel/{username}", userHandler.ChannelProfile)
				r.Get("/history", userHandler.WatchHistory)
			})
		})
	})

	return r, nil
}
