// Package recipe 將外部食譜生成服務的各式回應正規化為單一的 Recipe 結構。
package recipe

// Difficulty 難度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// SourceConfidence 來源可信度，目前固定為 high
type SourceConfidence string

const ConfidenceHigh SourceConfidence = "high"

const (
	// DefaultPrepTimeMinutes 無法解析時間時的預設值
	DefaultPrepTimeMinutes = 20
	// DefaultDishName 上游缺少菜名時的佔位名稱
	DefaultDishName = "Generated Recipe"
	// UnknownQuantity 食材數量未知時的標記
	UnknownQuantity = "unknown"
)

// Ingredient 食材
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// Nutrition 營養資訊；蛋白質、碳水、脂肪各自可省略
type Nutrition struct {
	Calories      *int     `json:"calories"`
	Protein       *float64 `json:"protein,omitempty"`
	Carbohydrates *float64 `json:"carbohydrates,omitempty"`
	Fats          *float64 `json:"fats,omitempty"`
}

// Recipe 正規化後的食譜，建立後不再修改
type Recipe struct {
	RecipeID            string           `json:"recipeId"`
	UserID              string           `json:"userId"`
	DishName            string           `json:"dishName"`
	ShortDescription    string           `json:"shortDescription"`
	ImageURL            *string          `json:"imageUrl"`
	PrepTimeMinutes     int              `json:"prepTimeMinutes"`
	Difficulty          Difficulty       `json:"difficulty"`
	Ingredients         []Ingredient     `json:"ingredients"`
	Steps               []string         `json:"steps"`
	CookingMethods      []string         `json:"cookingMethods"`
	Nutrition           *Nutrition       `json:"nutrition,omitempty"`
	CalorieAccuracyNote *string          `json:"calorieAccuracyNote,omitempty"`
	SourceConfidence    SourceConfidence `json:"sourceConfidence"`
	CreatedAt           int64            `json:"createdAt"`
}
