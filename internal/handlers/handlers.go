package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nutriplan/api/internal/cache"
	"nutriplan/api/internal/config"
	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/middleware"
	"nutriplan/api/internal/models"
	"nutriplan/api/internal/security"
	"nutriplan/api/internal/service"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	hasher   *security.PasswordHasher
	sessions *service.SessionService
	ratings  *service.RatingService
	importer *service.ImportService
	cache    *cache.TTL
	db       *pgxpool.Pool // nil unless the postgres driver is active
	redis    *redis.Client // nil unless the redis driver is active
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	persistent kv.Store,
	ephemeral kv.Store,
	recipeList []models.Recipe,
	db *pgxpool.Pool,
	redisClient *redis.Client,
) HandlerSet {
	hasher := security.NewPasswordHasher(cfg.Security.PBKDF2Iterations, log)
	ttlCache := cache.New(persistent, cfg.Cache.Prefix, cfg.Cache.Version, cfg.Cache.DefaultTTL, log)

	sessions := service.NewSessionService(persistent, ephemeral, hasher, cfg.Security, log)
	ratings := service.NewRatingService(persistent, ttlCache, cfg.Cache.RatingTTL, log)
	importer := service.NewImportService(persistent, recipeList, log)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		hasher:   hasher,
		sessions: sessions,
		ratings:  ratings,
		importer: importer,
		cache:    ttlCache,
		db:       db,
		redis:    redisClient,
	}
}

// Sessions exposes the session service for the background scheduler.
func (h HandlerSet) Sessions() *service.SessionService { return h.sessions }

// Cache exposes the TTL cache for the background scheduler.
func (h HandlerSet) Cache() *cache.TTL { return h.cache }

// Routes mounts every endpoint under the given group.
func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.POST("/password-strength", h.PasswordStrength)
		auth.GET("/suggest-password", h.SuggestPassword)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.sessions))
		protected.GET("/me", h.Me)

		v1.GET("/ratings/top-rated", h.TopRated)

		recipes := v1.Group("/recipes")
		recipes.GET("/:id/ratings", h.GetRecipeRatings)
		recipes.GET("/:id/ratings/:userId", h.GetUserRating)

		rated := v1.Group("/recipes")
		rated.Use(middleware.Auth(h.cfg, h.sessions))
		rated.POST("/:id/ratings", h.AddRating)
		rated.DELETE("/:id/ratings/:userId", h.RemoveRating)
		rated.POST("/:id/ratings/:userId/replies", h.AddReply)

		admin := v1.Group("/admin")
		admin.Use(
			middleware.Auth(h.cfg, h.sessions),
			middleware.RequireRoles(security.RoleAdministrator),
		)
		admin.GET("/users/stats", h.UserStats)
		admin.GET("/cache/stats", h.CacheStats)
		admin.POST("/cache/cleanup", h.CacheCleanup)
		admin.DELETE("/cache", h.CacheClear)

		// the import endpoint answers 405 itself so non-POST methods are
		// reported the way the legacy endpoint did
		v1.Any("/admin/import", h.ImportRecipes)
	}
}
