// Package collection 從遠端儲存的完整即時結果中，重建目前使用者的食譜集合。
package collection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/pkg/common"
)

// Image 圖片來源；目前只有 url 一種
type Image struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NutritionView 四個欄位都會輸出，缺少時為 null
type NutritionView struct {
	Calories      *int     `json:"calories"`
	Protein       *float64 `json:"protein"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Fats          *float64 `json:"fats"`
}

// RecipeView 給前端使用的食譜
type RecipeView struct {
	ID                  string              `json:"id"`
	RecipeID            string              `json:"recipeId"`
	UserID              string              `json:"userId"`
	DishName            string              `json:"dishName"`
	ShortDescription    string              `json:"shortDescription"`
	ImageURL            string              `json:"imageUrl"`
	PrepTimeMinutes     int                 `json:"prepTimeMinutes"`
	Difficulty          string              `json:"difficulty"`
	Ingredients         []recipe.Ingredient `json:"ingredients"`
	Steps               []string            `json:"steps"`
	CookingMethods      []string            `json:"cookingMethods"`
	Nutrition           NutritionView       `json:"nutrition"`
	CalorieAccuracyNote *string             `json:"calorieAccuracyNote"`
	SourceConfidence    string              `json:"sourceConfidence"`
	CreatedAt           int64               `json:"createdAt"`
	Image               Image               `json:"image"`
}

// Reconstruct 只保留 userID 擁有的食譜，以 recipeId 為鍵；userID 為空時回傳空集合
func Reconstruct(entities []store.Entity, userID, fallbackImageURL string) map[string]RecipeView {
	views := make(map[string]RecipeView)
	if userID == "" {
		return views
	}

	for _, e := range entities {
		if owner, _ := e.Fields["userId"].(string); owner != userID {
			continue
		}
		v := FromEntity(e, fallbackImageURL)
		// 依 createdAt 由新到舊排序，重複的 recipeId 保留最新的一筆
		if _, exists := views[v.RecipeID]; exists {
			common.LogDebug("重複的 recipeId，保留較新的一筆",
				zap.String("recipe_id", v.RecipeID),
				zap.String("entity_id", e.ID),
			)
			continue
		}
		views[v.RecipeID] = v
	}
	return views
}

// FromEntity 將遠端實體修復成 RecipeView
func FromEntity(e store.Entity, fallbackImageURL string) RecipeView {
	f := e.Fields
	v := RecipeView{
		ID:               e.ID,
		RecipeID:         text(f["recipeId"]),
		UserID:           text(f["userId"]),
		DishName:         text(f["dishName"]),
		ShortDescription: text(f["shortDescription"]),
		ImageURL:         text(f["imageUrl"]),
		PrepTimeMinutes:  intValue(f["prepTimeMinutes"], recipe.DefaultPrepTimeMinutes),
		Difficulty:       string(recipe.NormalizeDifficulty(text(f["difficulty"]))),
		Ingredients:      RepairIngredients(f["ingredients"]),
		Steps:            RepairSteps(f["steps"]),
		CookingMethods:   RepairSteps(f["cookingMethods"]),
		Nutrition: NutritionView{
			Calories:      recipe.ParseCalories(f["calories"]),
			Protein:       recipe.ParseFloat(f["protein"]),
			Carbohydrates: recipe.ParseFloat(f["carbohydrates"]),
			Fats:          recipe.ParseFloat(f["fats"]),
		},
		SourceConfidence: text(f["sourceConfidence"]),
		CreatedAt:        int64(intValue(f["createdAt"], 0)),
	}
	if v.RecipeID == "" {
		v.RecipeID = e.ID
	}
	if note := text(f["calorieAccuracyNote"]); note != "" {
		v.CalorieAccuracyNote = &note
	}
	v.Image = imageOf(v.ImageURL, fallbackImageURL)
	return v
}

// FromRecipe 將剛生成、尚未出現在即時結果中的食譜轉為 RecipeView
func FromRecipe(r *recipe.Recipe, fallbackImageURL string) RecipeView {
	v := RecipeView{
		RecipeID:            r.RecipeID,
		UserID:              r.UserID,
		DishName:            r.DishName,
		ShortDescription:    r.ShortDescription,
		PrepTimeMinutes:     r.PrepTimeMinutes,
		Difficulty:          string(r.Difficulty),
		Ingredients:         RepairIngredients(r.Ingredients),
		Steps:               RepairSteps(r.Steps),
		CookingMethods:      RepairSteps(r.CookingMethods),
		CalorieAccuracyNote: r.CalorieAccuracyNote,
		SourceConfidence:    string(r.SourceConfidence),
		CreatedAt:           r.CreatedAt,
	}
	if r.ImageURL != nil {
		v.ImageURL = *r.ImageURL
	}
	if n := r.Nutrition; n != nil {
		v.Nutrition = NutritionView{Calories: n.Calories, Protein: n.Protein, Carbohydrates: n.Carbohydrates, Fats: n.Fats}
	}
	v.Image = imageOf(v.ImageURL, fallbackImageURL)
	return v
}

// Sorted 依 createdAt 由新到舊排列
func Sorted(views map[string]RecipeView) []RecipeView {
	out := make([]RecipeView, 0, len(views))
	for _, v := range views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].RecipeID < out[j].RecipeID
	})
	return out
}

// RepairIngredients 任何非序列的值都變成空序列；可重複套用
func RepairIngredients(value any) []recipe.Ingredient {
	switch v := value.(type) {
	case []any:
		return recipe.NormalizeIngredients(v)
	case []recipe.Ingredient:
		out := make([]recipe.Ingredient, 0, len(v))
		for _, ing := range v {
			out = append(out, recipe.NormalizeIngredient(ing))
		}
		return out
	default:
		return []recipe.Ingredient{}
	}
}

// RepairSteps 任何非序列的值都變成空序列；非文字的元素會被略過
func RepairSteps(value any) []string {
	out := []string{}
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if s, ok := scalarText(item); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}

func imageOf(url, fallback string) Image {
	if url == "" {
		url = fallback
	}
	return Image{Type: "url", Value: url}
}

func text(value any) string {
	s, _ := scalarText(value)
	return s
}

func scalarText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int, int64, bool:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func intValue(value any, def int) int {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
