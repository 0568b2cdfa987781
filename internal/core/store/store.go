// Package store 是遠端文件儲存的邊界：以 namespace 分組的實體、交易寫入與即時查詢。
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

// Namespace 名稱
const (
	NamespaceRecipes = "recipes"
	NamespaceUsers   = "users"
)

// Entity 遠端儲存的一筆資料；欄位值是任意 JSON
type Entity struct {
	ID     string
	Fields map[string]any
}

// Snapshot 即時查詢的一次結果
type Snapshot struct {
	Entities  []Entity
	IsLoading bool
}

// Op 交易中的單一寫入，欄位與既有資料合併
type Op struct {
	Namespace string
	ID        string
	Fields    map[string]any
}

// Update 建立更新操作
func Update(namespace, id string, fields map[string]any) Op {
	return Op{Namespace: namespace, ID: id, Fields: fields}
}

// Store 遠端文件儲存
type Store interface {
	// Transact 原子地套用所有操作
	Transact(ctx context.Context, ops ...Op) error
	// Query 回傳 namespace 內全部實體，不做任何過濾
	Query(ctx context.Context, namespace string) ([]Entity, error)
	// Subscribe 開啟即時查詢；先送出 loading，之後每次變更都送出完整結果
	Subscribe(ctx context.Context, namespace string) (*Subscription, error)
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// New 依設定建立儲存
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// encodeOps 驗證並把欄位值轉成 JSON，確保兩種後端存放的型別一致
func encodeOps(ops []Op) ([]encodedOp, error) {
	out := make([]encodedOp, 0, len(ops))
	for _, op := range ops {
		if op.Namespace == "" || op.ID == "" {
			return nil, common.NewValidationError("namespace and id are required")
		}
		fields := make(map[string]string, len(op.Fields))
		for k, v := range op.Fields {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode field %q: %w", k, err)
			}
			fields[k] = string(data)
		}
		out = append(out, encodedOp{namespace: op.Namespace, id: op.ID, fields: fields})
	}
	return out, nil
}

type encodedOp struct {
	namespace string
	id        string
	fields    map[string]string
}

func decodeFields(raw map[string]string) map[string]any {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		var value any
		if err := common.ParseJSON(v, &value); err != nil {
			// 非 JSON 的舊資料以原字串保留
			value = v
		}
		fields[k] = value
	}
	return fields
}

// sortEntities 依 createdAt 由新到舊，再依 ID 排序
func sortEntities(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		ci, cj := createdAt(entities[i]), createdAt(entities[j])
		if ci != cj {
			return ci > cj
		}
		return entities[i].ID < entities[j].ID
	})
}

func createdAt(e Entity) float64 {
	switch v := e.Fields["createdAt"].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
