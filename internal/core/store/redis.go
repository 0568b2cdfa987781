package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

// RedisStore 以 redis 實作的遠端文件儲存。
// 每個實體是一個 hash（欄位值為 JSON），每個 namespace 有一個 id 集合，
// 變更透過 pub/sub 通知所有執行個體的訂閱者。
type RedisStore struct {
	client *redis.Client
	prefix string
	hub    *hub

	cancel context.CancelFunc
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisStore 創建 redis 儲存
func NewRedisStore(cfg config.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s, err := newRedisStore(client, cfg.KeyPrefix)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func newRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "recipe-keeper"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &RedisStore{
		client: client,
		prefix: prefix,
		hub:    newHub(),
		cancel: cancel,
	}

	s.pubsub = client.Subscribe(ctx, s.changesChannel())
	// 等待訂閱確認，避免遺漏之後的通知
	if _, err := s.pubsub.Receive(ctx); err != nil {
		cancel()
		s.pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	s.wg.Add(1)
	go s.listen()
	return s, nil
}

func (s *RedisStore) listen() {
	defer s.wg.Done()
	for msg := range s.pubsub.Channel() {
		s.hub.notify(msg.Payload)
	}
}

// Transact 以 MULTI/EXEC 原子地套用所有操作並發布變更
func (s *RedisStore) Transact(ctx context.Context, ops ...Op) error {
	encoded, err := encodeOps(ops)
	if err != nil {
		return err
	}

	touched := make(map[string]struct{})
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range encoded {
			if len(op.fields) > 0 {
				values := make(map[string]interface{}, len(op.fields))
				for k, v := range op.fields {
					values[k] = v
				}
				pipe.HSet(ctx, s.entityKey(op.namespace, op.id), values)
			}
			pipe.SAdd(ctx, s.idsKey(op.namespace), op.id)
			touched[op.namespace] = struct{}{}
		}
		for ns := range touched {
			pipe.Publish(ctx, s.changesChannel(), ns)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write entities: %w", err)
	}
	return nil
}

// Query 回傳 namespace 內全部實體
func (s *RedisStore) Query(ctx context.Context, namespace string) ([]Entity, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	if len(ids) == 0 {
		return []Entity{}, nil
	}

	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.entityKey(namespace, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}

	entities := make([]Entity, 0, len(ids))
	for i, cmd := range cmds {
		raw := cmd.Val()
		if len(raw) == 0 {
			common.LogDebug("id 集合中的實體不存在",
				zap.String("namespace", namespace),
				zap.String("id", ids[i]),
			)
			continue
		}
		entities = append(entities, Entity{ID: ids[i], Fields: decodeFields(raw)})
	}
	sortEntities(entities)
	return entities, nil
}

// Subscribe 開啟即時查詢
func (s *RedisStore) Subscribe(ctx context.Context, namespace string) (*Subscription, error) {
	return s.hub.subscribe(ctx, namespace, s.Query)
}

// Ping 檢查 redis 連線
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Name 後端名稱
func (s *RedisStore) Name() string {
	return "redis"
}

// Close 結束訂閱並關閉連線
func (s *RedisStore) Close() error {
	s.hub.close()
	s.cancel()
	err := s.pubsub.Close()
	s.wg.Wait()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *RedisStore) idsKey(namespace string) string {
	return fmt.Sprintf("%s:%s:ids", s.prefix, namespace)
}

func (s *RedisStore) entityKey(namespace, id string) string {
	return fmt.Sprintf("%s:%s:entity:%s", s.prefix, namespace, id)
}

func (s *RedisStore) changesChannel() string {
	return s.prefix + ":changes"
}
