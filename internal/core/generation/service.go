// Package generation 串起食譜生成流程：呼叫生成服務、正規化、寫入遠端儲存。
package generation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/persistence"
	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/session"
	"recipe-keeper/internal/pkg/common"
)

// Generator 外部食譜生成服務
type Generator interface {
	Generate(ctx context.Context, ingredients []string) ([]byte, error)
}

// Persister 寫入遠端儲存
type Persister interface {
	Persist(ctx context.Context, r *recipe.Recipe) *persistence.Task
}

// Result 生成結果；Persisted 可選擇性等待
type Result struct {
	Recipe    *recipe.Recipe
	Persisted *persistence.Task
}

// Service 食譜生成服務
type Service struct {
	generator   Generator
	transformer *recipe.Transformer
	persister   Persister
}

// NewService 創建生成服務
func NewService(g Generator, t *recipe.Transformer, p Persister) *Service {
	return &Service{generator: g, transformer: t, persister: p}
}

// SplitIngredients 以逗號分隔、去除空白並丟棄空項目
func SplitIngredients(items ...string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// GenerateRecipe 接受一段以逗號分隔的文字或多個食材
func (s *Service) GenerateRecipe(ctx context.Context, sess *session.Session, ingredients ...string) (*Result, error) {
	return s.Generate(ctx, SplitIngredients(ingredients...), sess)
}

// Generate 依序執行生成、轉換、排入寫入，然後立即返回；不等待寫入完成。
// sess 可為 nil（未登入），此時食譜沒有擁有者。
func (s *Service) Generate(ctx context.Context, ingredients []string, sess *session.Session) (*Result, error) {
	ingredients = SplitIngredients(ingredients...)
	if len(ingredients) == 0 {
		return nil, common.NewValidationError("please provide at least one ingredient")
	}

	body, err := s.generator.Generate(ctx, ingredients)
	if err != nil {
		return nil, err
	}

	r := s.transformer.FromBody(body, "", sess.UserID())
	common.LogInfo("食譜已生成",
		zap.String("recipe_id", r.RecipeID),
		zap.String("dish_name", r.DishName),
		zap.Int("ingredients", len(r.Ingredients)),
		zap.Int("steps", len(r.Steps)),
	)

	if sess != nil {
		sess.SetCurrentRecipe(r)
	}

	return &Result{
		Recipe:    r,
		Persisted: s.persister.Persist(ctx, r),
	}, nil
}
