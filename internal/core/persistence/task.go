package persistence

import (
	"context"
	"sync"

	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/pkg/common"
)

// Task 一次寫入的結果；Done 關閉後 Err 才有意義
type Task struct {
	ctx      context.Context
	recipe   *recipe.Recipe
	record   map[string]any
	entityID string

	done chan struct{}
	once sync.Once
	err  error
}

func newTask(ctx context.Context, rec *recipe.Recipe) *Task {
	t := &Task{
		ctx:      ctx,
		recipe:   rec,
		entityID: common.GenerateUUID(),
		done:     make(chan struct{}),
	}
	if rec != nil {
		t.record = Record(rec)
	}
	return t
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done 寫入結束（成功或失敗）時關閉
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait 等待寫入結束，回傳寫入錯誤；ctx 取消時回傳 ctx 的錯誤
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err 寫入錯誤，尚未結束時為 nil
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Recipe 記憶體中的食譜，無論寫入成功與否都可用
func (t *Task) Recipe() *recipe.Recipe {
	return t.recipe
}

// Record 實際寫入的欄位
func (t *Task) Record() map[string]any {
	return t.record
}

// EntityID 遠端儲存中的實體 ID
func (t *Task) EntityID() string {
	return t.entityID
}

// Record 將食譜攤平成遠端儲存的欄位
func Record(r *recipe.Recipe) map[string]any {
	imageURL := ""
	if r.ImageURL != nil {
		imageURL = *r.ImageURL
	}

	var calories, protein, carbohydrates, fats any
	if n := r.Nutrition; n != nil {
		if n.Calories != nil {
			calories = *n.Calories
		}
		if n.Protein != nil {
			protein = *n.Protein
		}
		if n.Carbohydrates != nil {
			carbohydrates = *n.Carbohydrates
		}
		if n.Fats != nil {
			fats = *n.Fats
		}
	}

	var note any
	if r.CalorieAccuracyNote != nil {
		note = *r.CalorieAccuracyNote
	}

	return map[string]any{
		"recipeId":            r.RecipeID,
		"userId":              r.UserID,
		"dishName":            r.DishName,
		"shortDescription":    r.ShortDescription,
		"imageUrl":            imageURL,
		"prepTimeMinutes":     r.PrepTimeMinutes,
		"difficulty":          string(r.Difficulty),
		"calories":            calories,
		"protein":             protein,
		"carbohydrates":       carbohydrates,
		"fats":                fats,
		"ingredients":         nonNilIngredients(r.Ingredients),
		"steps":               nonNilStrings(r.Steps),
		"cookingMethods":      nonNilStrings(r.CookingMethods),
		"calorieAccuracyNote": note,
		"sourceConfidence":    string(r.SourceConfidence),
		"createdAt":           r.CreatedAt,
	}
}

func nonNilIngredients(in []recipe.Ingredient) []recipe.Ingredient {
	if in == nil {
		return []recipe.Ingredient{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
