package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-keeper/internal/core/persistence"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// Pinger 可檢查連線的依賴
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// StatusReporter 寫入隊列狀態
type StatusReporter interface {
	Status() *persistence.Status
}

// StatsReporter 快取統計
type StatsReporter interface {
	Stats() map[string]interface{}
}

// SessionCounter 目前的階段數
type SessionCounter interface {
	Count() int
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Store     StoreStatus            `json:"store"`
	Queue     *persistence.Status    `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
	Sessions  int                    `json:"sessions"`
	Runtime   map[string]interface{} `json:"runtime"`
}

// StoreStatus 遠端儲存狀態
type StoreStatus struct {
	Backend string `json:"backend"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	cfg      *config.Config
	store    Pinger
	queue    StatusReporter
	cache    StatsReporter
	sessions SessionCounter
}

// NewHandler 創建健康檢查處理器
func NewHandler(cfg *config.Config, st Pinger, q StatusReporter, c StatsReporter, s SessionCounter) *Handler {
	return &Handler{cfg: cfg, store: st, queue: q, cache: c, sessions: s}
}

func (h *Handler) storeStatus(ctx context.Context) StoreStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	s := StoreStatus{Backend: h.store.Name(), OK: true}
	if err := h.store.Ping(ctx); err != nil {
		s.OK = false
		s.Error = err.Error()
	}
	return s
}

// HealthCheck 回報儲存、寫入隊列、快取與執行期狀態
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.cfg.App.Version,
		Store:     h.storeStatus(c.Request.Context()),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.Status()
	}
	if h.cache != nil {
		response.Cache = h.cache.Stats()
	}
	if h.sessions != nil {
		response.Sessions = h.sessions.Count()
	}
	// 遠端儲存不可用時仍可生成食譜，只是不會寫入
	if !response.Store.OK {
		response.Status = "degraded"
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("status", response.Status),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 遠端儲存可連線時才就緒
func (h *Handler) ReadinessCheck(c *gin.Context) {
	s := h.storeStatus(c.Request.Context())
	if !s.OK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"store":  s,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
