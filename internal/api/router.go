package api

import (
	"time"

	"recipe-keeper/internal/api/handlers/health"
	recipeHandler "recipe-keeper/internal/api/handlers/recipe"
	sessionHandler "recipe-keeper/internal/api/handlers/session"
	userHandler "recipe-keeper/internal/api/handlers/users"
	"recipe-keeper/internal/api/middleware"
	"recipe-keeper/internal/core/cache"
	"recipe-keeper/internal/core/generation"
	"recipe-keeper/internal/core/library"
	"recipe-keeper/internal/core/persistence"
	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/session"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/core/users"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 120 * time.Second
	// 請求體大小限制 (10MB)
	maxBodySize = 10 << 20
)

// Dependencies 路由使用的服務
type Dependencies struct {
	Store      store.Store
	Cache      *cache.Manager
	Reconciler *persistence.Reconciler
	Generation *generation.Service
	Library    *library.Service
	Users      *users.Service
	Sessions   *session.Manager
	Dedup      *middleware.Deduplicator
}

// NewDependencies 以遠端儲存與生成服務組裝其餘服務；c 可為 nil
func NewDependencies(cfg *config.Config, st store.Store, gen generation.Generator, c *cache.Manager) *Dependencies {
	transformer := recipe.NewTransformer()
	reconciler := persistence.NewReconciler(cfg, st)

	return &Dependencies{
		Store:      st,
		Cache:      c,
		Reconciler: reconciler,
		Generation: generation.NewService(gen, transformer, reconciler),
		Library:    library.NewService(st, reconciler, transformer, cfg.Collection.FallbackImageURL),
		Users:      users.NewService(cfg, st),
		Sessions:   session.NewManager(),
		Dedup:      middleware.NewDeduplicator(cfg.DedupWindow),
	}
}

// Close 停止背景工作；排隊中的寫入會先完成。遠端儲存由呼叫端關閉。
func (d *Dependencies) Close() {
	d.Dedup.Stop()
	d.Reconciler.Close()
	if err := d.Cache.Close(); err != nil {
		common.LogWarn("關閉快取失敗", zap.Error(err))
	}
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps *Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.String("store", deps.Store.Name()),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件；請求 ID 需在日誌之前產生
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.RequestContext())
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	healthHandler := health.NewHandler(cfg, deps.Store, deps.Reconciler, deps.Cache, deps.Sessions)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	timeout := middleware.Timeout(timeoutDuration)
	optionalSession := middleware.Session(deps.Sessions, false)
	requireSession := middleware.Session(deps.Sessions, true)

	api := router.Group("/api")
	{
		sessions := sessionHandler.NewHandler(deps.Users, deps.Sessions)
		sessionGroup := api.Group("/session", timeout)
		{
			sessionGroup.POST("/login", sessions.HandleLogin)
			sessionGroup.POST("/logout", sessions.HandleLogout)
			sessionGroup.GET("/me", requireSession, sessions.HandleMe)
		}

		usersH := userHandler.NewHandler(deps.Users)
		userGroup := api.Group("/users", timeout)
		{
			userGroup.POST("/create", usersH.HandleCreate)
			userGroup.POST("/find", usersH.HandleFind)
			userGroup.POST("/find-google", usersH.HandleFindGoogle)
			userGroup.POST("/create-google", usersH.HandleCreateGoogle)
			userGroup.PUT("/update/:userId", usersH.HandleUpdate)
		}

		recipes := recipeHandler.NewHandler(deps.Generation, deps.Library, deps.Store, cfg.Collection.FallbackImageURL)
		recipeGroup := api.Group("/recipes")
		{
			generate := []gin.HandlerFunc{timeout, optionalSession}
			if cfg.RateLimit.Enabled {
				generate = append(generate, middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
			}
			generate = append(generate, deps.Dedup.Handler(), recipes.HandleGenerate)
			recipeGroup.POST("/generate", generate...)

			recipeGroup.POST("/save", timeout, optionalSession, recipes.HandleSave)
			recipeGroup.POST("/get", timeout, recipes.HandleList)
			recipeGroup.GET("/collection", timeout, requireSession, recipes.HandleCollection)
			recipeGroup.GET("/collection/:recipeId", timeout, requireSession, recipes.HandleGet)

			// 長連線，不套用超時
			recipeGroup.GET("/live", requireSession, recipes.HandleLive)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Int("queue_workers", cfg.Queue.Workers),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router
}
