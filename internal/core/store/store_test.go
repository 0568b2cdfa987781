package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			s := NewMemoryStore()
			t.Cleanup(func() { s.Close() })
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := NewRedisStore(config.StoreConfig{Backend: "redis", RedisAddr: mr.Addr(), KeyPrefix: "test"})
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func waitFor(t *testing.T, sub *Subscription, match func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed")
			if match(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func hasEntities(n int) func(Snapshot) bool {
	return func(s Snapshot) bool { return !s.IsLoading && len(s.Entities) == n }
}

func TestTransactAndQuery(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			err := s.Transact(ctx,
				Update(NamespaceRecipes, "a", map[string]any{"userId": "u1", "createdAt": int64(100), "steps": []string{"x"}}),
				Update(NamespaceRecipes, "b", map[string]any{"userId": "u2", "createdAt": int64(200)}),
			)
			require.NoError(t, err)

			entities, err := s.Query(ctx, NamespaceRecipes)
			require.NoError(t, err)
			require.Len(t, entities, 2)
			assert.Equal(t, "b", entities[0].ID, "newest first")
			assert.Equal(t, "u1", entities[1].Fields["userId"])
			assert.Equal(t, json.Number("100"), entities[1].Fields["createdAt"])
			assert.Equal(t, []any{"x"}, entities[1].Fields["steps"])

			// 合併欄位
			require.NoError(t, s.Transact(ctx, Update(NamespaceRecipes, "a", map[string]any{"dishName": "Soup"})))
			entities, err = s.Query(ctx, NamespaceRecipes)
			require.NoError(t, err)
			assert.Equal(t, "Soup", entities[1].Fields["dishName"])
			assert.Equal(t, "u1", entities[1].Fields["userId"])

			empty, err := s.Query(ctx, NamespaceUsers)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestTransactRejectsMissingID(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	err := s.Transact(context.Background(), Update(NamespaceRecipes, "", map[string]any{"a": 1}))
	assert.True(t, common.IsValidationError(err))
}

func TestTransactUnencodableValue(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	err := s.Transact(context.Background(), Update(NamespaceRecipes, "x", map[string]any{"bad": make(chan int)}))
	assert.Error(t, err)

	entities, err := s.Query(context.Background(), NamespaceRecipes)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sub, err := s.Subscribe(ctx, NamespaceRecipes)
			require.NoError(t, err)
			assert.Equal(t, NamespaceRecipes, sub.Namespace())

			waitFor(t, sub, hasEntities(0))

			require.NoError(t, s.Transact(ctx, Update(NamespaceRecipes, "r1", map[string]any{"userId": "u"})))
			snap := waitFor(t, sub, hasEntities(1))
			assert.Equal(t, "r1", snap.Entities[0].ID)

			require.NoError(t, s.Transact(ctx, Update(NamespaceRecipes, "r2", map[string]any{"userId": "u"})))
			waitFor(t, sub, hasEntities(2))
		})
	}
}

func TestSubscriptionCloses(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.Subscribe(ctx, NamespaceRecipes)
	require.NoError(t, err)
	waitFor(t, sub, hasEntities(0))

	cancel()
	for range sub.Updates() {
	}
	assert.Eventually(t, func() bool { return s.hub.subscribers(NamespaceRecipes) == 0 }, time.Second, 10*time.Millisecond)

	sub2, err := s.Subscribe(context.Background(), NamespaceRecipes)
	require.NoError(t, err)
	sub2.Close()
	for range sub2.Updates() {
	}
}

func TestClosedStore(t *testing.T) {
	s := NewMemoryStore()
	sub, err := s.Subscribe(context.Background(), NamespaceRecipes)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	for range sub.Updates() {
	}

	assert.ErrorIs(t, s.Transact(context.Background(), Update(NamespaceRecipes, "x", nil)), common.ErrStoreClosed)
	_, err = s.Subscribe(context.Background(), NamespaceRecipes)
	assert.ErrorIs(t, err, common.ErrStoreClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), common.ErrStoreClosed)
}

func TestNewStore(t *testing.T) {
	s, err := New(config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())
	s.Close()

	_, err = New(config.StoreConfig{Backend: "nope"})
	assert.Error(t, err)

	_, err = New(config.StoreConfig{Backend: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
