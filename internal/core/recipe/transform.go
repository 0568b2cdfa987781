package recipe

import (
	"time"

	"recipe-keeper/internal/pkg/common"
)

// Transformer 將 Draft 組裝為 Recipe，補上缺少的預設值
type Transformer struct {
	now   func() time.Time
	newID func() string
}

// Option 設定 Transformer
type Option func(*Transformer)

// WithClock 指定時間來源
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// WithIDGenerator 指定未提供 recipeId 時的識別碼產生方式
func WithIDGenerator(newID func() string) Option {
	return func(t *Transformer) { t.newID = newID }
}

// NewTransformer 創建新的轉換器
func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		now:   time.Now,
		newID: common.GenerateUUID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform 產生 Recipe；recipeID 為空時自動產生
func (t *Transformer) Transform(d Draft, recipeID, userID string) *Recipe {
	if recipeID == "" {
		recipeID = t.newID()
	}

	r := &Recipe{
		RecipeID:            recipeID,
		UserID:              userID,
		DishName:            d.DishName,
		ShortDescription:    d.Description,
		ImageURL:            optionalString(d.ImageURL),
		PrepTimeMinutes:     resolvePrepTime(d),
		Difficulty:          NormalizeDifficulty(d.Difficulty),
		Ingredients:         append([]Ingredient{}, d.Ingredients...),
		Steps:               append([]string{}, d.Steps...),
		CookingMethods:      append([]string{}, d.CookingMethods...),
		Nutrition:           d.Nutrition,
		CalorieAccuracyNote: optionalString(d.CalorieAccuracyNote),
		SourceConfidence:    ConfidenceHigh,
		CreatedAt:           t.now().UnixMilli(),
	}

	if r.DishName == "" {
		r.DishName = DefaultDishName
	}

	return r
}

// FromBody 解析並轉換上游原始回應
func (t *Transformer) FromBody(body []byte, recipeID, userID string) *Recipe {
	return t.Transform(ParseDraft(body), recipeID, userID)
}

func resolvePrepTime(d Draft) int {
	if d.PrepTimeMinutes != nil {
		return *d.PrepTimeMinutes
	}
	if minutes, ok := minutesFromSteps(d.Steps); ok {
		return minutes
	}
	return DefaultPrepTimeMinutes
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
