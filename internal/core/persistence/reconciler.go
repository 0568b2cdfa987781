// Package persistence 盡力將食譜寫入遠端儲存；寫入失敗只記錄，不影響呼叫端。
package persistence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

// Status 寫入隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	FailedCount    int `json:"failed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Reconciler 持久化協調器，以固定數量的 worker 處理寫入
type Reconciler struct {
	store   store.Store
	settle  time.Duration
	maxSize int
	workers int

	queue chan *Task
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	processed int64
	failed    int64
}

// NewReconciler 創建協調器並啟動 worker
func NewReconciler(cfg *config.Config, st store.Store) *Reconciler {
	r := &Reconciler{
		store:   st,
		settle:  cfg.Store.SettleDelay,
		maxSize: cfg.Queue.MaxSize,
		workers: cfg.Queue.Workers,
		queue:   make(chan *Task, cfg.Queue.MaxSize),
		done:    make(chan struct{}),
	}

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// Persist 排入一次寫入並立即返回。回傳的 Task 可選擇性等待；
// 呼叫端的 context 取消不會中斷寫入。
func (r *Reconciler) Persist(ctx context.Context, rec *recipe.Recipe) *Task {
	t := newTask(context.WithoutCancel(ctx), rec)
	if rec == nil {
		r.fail(t, common.NewValidationError("recipe is required"))
		return t
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.fail(t, common.ErrStoreClosed)
		return t
	}

	select {
	case r.queue <- t:
		common.LogDebug("食譜已排入寫入隊列",
			zap.String("recipe_id", rec.RecipeID),
			zap.Int("queue_length", len(r.queue)),
		)
	default:
		r.fail(t, common.ErrQueueFull)
	}
	return t
}

func (r *Reconciler) worker(id int) {
	defer r.wg.Done()
	for t := range r.queue {
		r.process(id, t)
	}
}

func (r *Reconciler) process(workerID int, t *Task) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(t, fmt.Errorf("persistence panic: %v", p))
		}
	}()

	if err := r.store.Transact(t.ctx, store.Update(store.NamespaceRecipes, t.entityID, t.record)); err != nil {
		r.fail(t, err)
		return
	}

	// 寫入後等待一段時間讓即時查詢看得到
	if err := common.Sleep(t.ctx, r.settle, r.done); err != nil {
		common.LogDebug("等待寫入生效時中止", zap.Error(err))
	}

	atomic.AddInt64(&r.processed, 1)
	common.LogInfo("食譜已寫入",
		zap.Int("worker", workerID),
		zap.String("recipe_id", t.recipe.RecipeID),
		zap.String("entity_id", t.entityID),
	)
	t.finish(nil)
}

// fail 記錄錯誤並結束任務；錯誤不會往上傳遞
func (r *Reconciler) fail(t *Task, err error) {
	atomic.AddInt64(&r.failed, 1)
	fields := []zap.Field{zap.Error(err), zap.String("entity_id", t.entityID)}
	if t.recipe != nil {
		fields = append(fields, zap.String("recipe_id", t.recipe.RecipeID))
	}
	common.LogError("食譜寫入失敗", fields...)
	t.finish(err)
}

// Status 獲取隊列狀態
func (r *Reconciler) Status() *Status {
	return &Status{
		QueueLength:    len(r.queue),
		ProcessedCount: int(atomic.LoadInt64(&r.processed)),
		FailedCount:    int(atomic.LoadInt64(&r.failed)),
		MaxQueueSize:   r.maxSize,
		Workers:        r.workers,
	}
}

// Close 停止接收新任務，處理完隊列中剩餘的寫入後返回
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.done)
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}
