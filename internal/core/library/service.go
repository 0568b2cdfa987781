// Package library 提供使用者食譜庫的存取：儲存與依使用者查詢。
package library

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/collection"
	"recipe-keeper/internal/core/persistence"
	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/pkg/common"
)

// Persister 寫入遠端儲存
type Persister interface {
	Persist(ctx context.Context, r *recipe.Recipe) *persistence.Task
}

// Service 食譜庫服務
type Service struct {
	store       store.Store
	persister   Persister
	transformer *recipe.Transformer
	fallback    string
}

// NewService 創建食譜庫服務
func NewService(st store.Store, p Persister, t *recipe.Transformer, fallbackImageURL string) *Service {
	return &Service{
		store:       st,
		persister:   p,
		transformer: t,
		fallback:    fallbackImageURL,
	}
}

// Save 將任意形狀的食譜資料轉成標準食譜後寫入，並等待寫入完成
func (s *Service) Save(ctx context.Context, data map[string]any, userID string) (*recipe.Recipe, error) {
	if len(data) == 0 {
		return nil, common.NewValidationError("recipeData is required")
	}
	if userID == "" {
		return nil, common.NewValidationError("userId is required")
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, common.NewValidationError(fmt.Sprintf("invalid recipeData: %v", err))
	}

	recipeID, _ := data["recipeId"].(string)
	r := s.transformer.FromBody(body, recipeID, userID)

	task := s.persister.Persist(ctx, r)
	if err := task.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to save recipe: %w", err)
	}

	common.LogInfo("食譜已存入食譜庫",
		zap.String("recipe_id", r.RecipeID),
		zap.String("user_id", userID),
	)
	return r, nil
}

// ByUser 依使用者查詢食譜，最新的在前
func (s *Service) ByUser(ctx context.Context, userID string) ([]collection.RecipeView, error) {
	if userID == "" {
		return nil, common.NewValidationError("userId is required")
	}

	entities, err := s.store.Query(ctx, store.NamespaceRecipes)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	return collection.Sorted(collection.Reconstruct(entities, userID, s.fallback)), nil
}
