package store

import (
	"context"
	"sync"

	"recipe-keeper/internal/pkg/common"
)

// MemoryStore 單機用的記憶體儲存，寫入後立即通知訂閱者
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]map[string]string
	hub    *hub
	closed bool
}

// NewMemoryStore 創建記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]map[string]string),
		hub:  newHub(),
	}
}

// Transact 原子地套用所有操作
func (s *MemoryStore) Transact(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := encodeOps(ops)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return common.ErrStoreClosed
	}
	touched := make(map[string]struct{})
	for _, op := range encoded {
		ns := s.data[op.namespace]
		if ns == nil {
			ns = make(map[string]map[string]string)
			s.data[op.namespace] = ns
		}
		entity := ns[op.id]
		if entity == nil {
			entity = make(map[string]string, len(op.fields))
			ns[op.id] = entity
		}
		for k, v := range op.fields {
			entity[k] = v
		}
		touched[op.namespace] = struct{}{}
	}
	s.mu.Unlock()

	for ns := range touched {
		s.hub.notify(ns)
	}
	return nil
}

// Query 回傳 namespace 內全部實體
func (s *MemoryStore) Query(ctx context.Context, namespace string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, common.ErrStoreClosed
	}

	entities := make([]Entity, 0, len(s.data[namespace]))
	for id, raw := range s.data[namespace] {
		entities = append(entities, Entity{ID: id, Fields: decodeFields(raw)})
	}
	sortEntities(entities)
	return entities, nil
}

// Subscribe 開啟即時查詢
func (s *MemoryStore) Subscribe(ctx context.Context, namespace string) (*Subscription, error) {
	return s.hub.subscribe(ctx, namespace, s.Query)
}

// Ping 記憶體儲存永遠可用，除非已關閉
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return common.ErrStoreClosed
	}
	return nil
}

// Name 後端名稱
func (s *MemoryStore) Name() string {
	return "memory"
}

// Close 關閉儲存並結束所有訂閱
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.close()
	return nil
}
