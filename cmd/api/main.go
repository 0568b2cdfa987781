package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-keeper/internal/api"
	"recipe-keeper/internal/core/cache"
	"recipe-keeper/internal/core/generator"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("generator_url", cfg.Generator.URL),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// 遠端儲存
	st, err := store.New(cfg.Store)
	if err != nil {
		common.LogFatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	// 初始化快取；關閉時回傳 nil，呼叫端不需判斷
	cacheManager := cache.NewManager(cfg.Cache)

	deps := api.NewDependencies(cfg, st, generator.NewClient(cfg, cacheManager), cacheManager)
	router := api.SetupRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 等待排隊中的寫入完成後才關閉儲存
	deps.Close()
	common.LogInfo("Server exited")
}
