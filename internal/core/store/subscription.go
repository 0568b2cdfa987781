package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"recipe-keeper/internal/pkg/common"
)

type queryFunc func(ctx context.Context, namespace string) ([]Entity, error)

// Subscription 即時查詢訂閱。Updates 只保留最新的一筆結果，
// 讀取太慢時舊結果會被覆蓋。
type Subscription struct {
	namespace string
	updates   chan Snapshot
	dirty     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Updates 結果通道，訂閱結束時關閉
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Namespace 訂閱的 namespace
func (s *Subscription) Namespace() string {
	return s.namespace
}

// Close 取消訂閱
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Subscription) send(snap Snapshot) {
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// hub 管理訂閱者，收到變更通知時讓訂閱者重新查詢
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*Subscription]struct{})}
}

func (h *hub) subscribe(ctx context.Context, namespace string, query queryFunc) (*Subscription, error) {
	sub := &Subscription{
		namespace: namespace,
		updates:   make(chan Snapshot, 1),
		dirty:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, common.ErrStoreClosed
	}
	if h.subs[namespace] == nil {
		h.subs[namespace] = make(map[*Subscription]struct{})
	}
	h.subs[namespace][sub] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	go h.watch(ctx, sub, query)
	return sub, nil
}

func (h *hub) watch(ctx context.Context, sub *Subscription, query queryFunc) {
	defer h.wg.Done()
	defer close(sub.updates)
	defer h.remove(sub)

	sub.send(Snapshot{IsLoading: true})
	for {
		entities, err := query(ctx, sub.namespace)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			common.LogWarn("即時查詢失敗，保留上一份結果",
				zap.String("namespace", sub.namespace),
				zap.Error(err),
			)
		} else {
			sub.send(Snapshot{Entities: entities})
		}

		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-sub.dirty:
		}
	}
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[sub.namespace]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.namespace)
		}
	}
}

func (h *hub) notify(namespace string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[namespace] {
		sub.markDirty()
	}
}

func (h *hub) subscribers(namespace string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[namespace])
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			sub.Close()
		}
	}
	h.mu.Unlock()
	h.wg.Wait()
}
