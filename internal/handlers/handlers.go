package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/cache"
	"vidstream/api/internal/config"
	"vidstream/api/internal/middleware"
	"vidstream/api/internal/models"
	"vidstream/api/internal/repository"
	"vidstream/api/internal/security"
	"vidstream/api/internal/service"
	"vidstream/api/internal/storage"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.AuthService
	profiles *service.ProfileService
	uploads  *service.UploadService
	db       *pgxpool.Pool
	cache    *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	tokens := security.NewTokenManager(cfg.Security)
	limiter := cache.NewLoginLimiter(redisClient, cfg.Security.LoginMaxAttempts, cfg.Security.LoginWindow)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     service.NewAuthService(userRepo, tokens, limiter, log),
		profiles: service.NewProfileService(userRepo, log),
		uploads:  service.NewUploadService(uploadRepo, store, log),
		db:       db,
		cache:    redisClient,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	users := v1.Group("/users")
	users.POST("/register", h.RegisterUser)
	users.POST("/login", h.Login)
	users.POST("/refresh", h.Refresh)

	protected := v1.Group("/users")
	protected.Use(middleware.Auth(h.auth))
	protected.POST("/logout", h.Logout)
	protected.PUT("/change-password", h.ChangePassword)
	protected.GET("/me", h.Me)
	protected.PUT("/account", h.UpdateAccount)
	protected.PUT("/avatar", h.UpdateAvatar)
	protected.PUT("/cover", h.UpdateCoverImage)
}

func (h HandlerSet) writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.ClientMessage(err)})
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get(middleware.CurrentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
