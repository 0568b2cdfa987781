package recipe

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTransformer() *Transformer {
	return NewTransformer(
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		WithIDGenerator(func() string { return "generated-id" }),
	)
}

func TestParsePayloadVariants(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		p := ParsePayload([]byte(`{"dishName":"Soup"}`))
		s, ok := p.(StructuredPayload)
		require.True(t, ok)
		assert.Equal(t, "Soup", s.Fields["dishName"])
	})

	t.Run("array takes first element", func(t *testing.T) {
		p := ParsePayload([]byte(`[{"dishName":"First"},{"dishName":"Second"}]`))
		s, ok := p.(StructuredPayload)
		require.True(t, ok)
		assert.Equal(t, "First", s.Fields["dishName"])
	})

	t.Run("json encoded string", func(t *testing.T) {
		p := ParsePayload([]byte(`"{\"dishName\":\"Wrapped\"}"`))
		s, ok := p.(StructuredPayload)
		require.True(t, ok)
		assert.Equal(t, "Wrapped", s.Fields["dishName"])
	})

	t.Run("markdown fenced json", func(t *testing.T) {
		p := ParsePayload([]byte("```json\n{\"dishName\":\"Fenced\"}\n```"))
		s, ok := p.(StructuredPayload)
		require.True(t, ok)
		assert.Equal(t, "Fenced", s.Fields["dishName"])
	})

	t.Run("plain text", func(t *testing.T) {
		p := ParsePayload([]byte("Dish Name\nStew"))
		_, ok := p.(LegacyTextPayload)
		assert.True(t, ok)
	})

	t.Run("empty body", func(t *testing.T) {
		p := ParsePayload(nil)
		l, ok := p.(LegacyTextPayload)
		require.True(t, ok)
		assert.Empty(t, l.Text)
	})
}

func TestTransformNestedResponse(t *testing.T) {
	body := `{"recipe": {"dish_name": "Lemon Tuna", "instructions": ["Sear tuna for 5 minutes", "Add lemon"]}, "nutrition": {"calories": 310.4}}`

	r := fixedTransformer().FromBody([]byte(body), "", "user-1")

	assert.Equal(t, "Lemon Tuna", r.DishName)
	assert.Len(t, r.Steps, 2)
	require.NotNil(t, r.Nutrition)
	require.NotNil(t, r.Nutrition.Calories)
	assert.Equal(t, 310, *r.Nutrition.Calories)
	assert.Equal(t, 5, r.PrepTimeMinutes)
	assert.Equal(t, "generated-id", r.RecipeID)
	assert.Equal(t, "user-1", r.UserID)
	assert.Equal(t, int64(1700000000000), r.CreatedAt)
	assert.Equal(t, ConfidenceHigh, r.SourceConfidence)
}

func TestTransformLegacyText(t *testing.T) {
	body := "Dish Name\nVeggie Stew\n\nIngredients Used\n- Carrot\n- Potato\n\nPreparation Steps\n1. Chop vegetables\n2. Simmer 20 minutes\n\nEstimated Caloric Value\ncannot determine"

	r := fixedTransformer().FromBody([]byte(body), "", "")

	assert.Equal(t, "Veggie Stew", r.DishName)
	assert.Equal(t, []Ingredient{
		{Name: "Carrot", Quantity: "unknown"},
		{Name: "Potato", Quantity: "unknown"},
	}, r.Ingredients)
	assert.Equal(t, []string{"Chop vegetables", "Simmer 20 minutes"}, r.Steps)
	if r.Nutrition != nil {
		assert.Nil(t, r.Nutrition.Calories)
	}
}

func TestTransformLegacyInlineHeaders(t *testing.T) {
	body := "**Dish Name:** Shakshuka\nShort Description: Eggs poached in tomato sauce\nIngredients:\n- Eggs\n* Tomatoes\nSteps:\n1) Simmer sauce\n2) Crack eggs\nCooking Methods: simmering, poaching\nEstimated Preparation Time: 25 minutes\nDifficulty Level: Easy\nEstimated Caloric Value: 420 kcal\nCalorie Accuracy Note: rough estimate"

	r := fixedTransformer().FromBody([]byte(body), "fixed", "u")

	assert.Equal(t, "fixed", r.RecipeID)
	assert.Equal(t, "Shakshuka", r.DishName)
	assert.Equal(t, "Eggs poached in tomato sauce", r.ShortDescription)
	assert.Len(t, r.Ingredients, 2)
	assert.Equal(t, []string{"Simmer sauce", "Crack eggs"}, r.Steps)
	assert.Equal(t, []string{"simmering", "poaching"}, r.CookingMethods)
	assert.Equal(t, 25, r.PrepTimeMinutes)
	assert.Equal(t, DifficultyEasy, r.Difficulty)
	require.NotNil(t, r.Nutrition)
	require.NotNil(t, r.Nutrition.Calories)
	assert.Equal(t, 420, *r.Nutrition.Calories)
	require.NotNil(t, r.CalorieAccuracyNote)
	assert.Equal(t, "rough estimate", *r.CalorieAccuracyNote)
}

func TestTransformMissingListsAreEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `{"dishName":"x","ingredients":null,"steps":null}`, `[]`, ``} {
		r := fixedTransformer().FromBody([]byte(body), "", "")
		require.NotNil(t, r.Ingredients, body)
		require.NotNil(t, r.Steps, body)
		assert.Empty(t, r.Ingredients, body)
		assert.Empty(t, r.Steps, body)

		data, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"ingredients":[]`)
		assert.Contains(t, string(data), `"steps":[]`)
	}
}

func TestTransformDefaults(t *testing.T) {
	r := fixedTransformer().FromBody([]byte(`{"difficulty":"HARD","time":"about 35 minutes"}`), "", "")

	assert.Equal(t, DefaultDishName, r.DishName)
	assert.Equal(t, DifficultyHard, r.Difficulty)
	assert.Equal(t, 35, r.PrepTimeMinutes)
	assert.Nil(t, r.ImageURL)
	assert.Nil(t, r.Nutrition)
	assert.Nil(t, r.CalorieAccuracyNote)
}

func TestTransformFieldAliases(t *testing.T) {
	body := `{
		"name": "Pasta",
		"description": "Simple",
		"imageUrl": "http://img/p.jpg",
		"estimatedPreparationTime": "15 min",
		"difficultyLevel": "Medium",
		"ingredientsUsed": ["pasta", {"name": "garlic", "quantity": "2 cloves"}],
		"preparationSteps": [{"step": 1, "text": "Boil"}, "2. Toss"],
		"cookingMethods": ["boiling"],
		"protein": "11g",
		"carbs": 60,
		"fat": 7.5
	}`

	r := fixedTransformer().FromBody([]byte(body), "", "")

	assert.Equal(t, "Pasta", r.DishName)
	assert.Equal(t, "Simple", r.ShortDescription)
	require.NotNil(t, r.ImageURL)
	assert.Equal(t, "http://img/p.jpg", *r.ImageURL)
	assert.Equal(t, 15, r.PrepTimeMinutes)
	assert.Equal(t, DifficultyMedium, r.Difficulty)
	assert.Equal(t, []Ingredient{{Name: "pasta", Quantity: "unknown"}, {Name: "garlic", Quantity: "2 cloves"}}, r.Ingredients)
	assert.Equal(t, []string{"Boil", "Toss"}, r.Steps)
	assert.Equal(t, []string{"boiling"}, r.CookingMethods)
	require.NotNil(t, r.Nutrition)
	assert.Nil(t, r.Nutrition.Calories)
	assert.InDelta(t, 11, *r.Nutrition.Protein, 0.001)
	assert.InDelta(t, 60, *r.Nutrition.Carbohydrates, 0.001)
	assert.InDelta(t, 7.5, *r.Nutrition.Fats, 0.001)
}

func TestPrepTimeFromSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  int
	}{
		{"largest mention", []string{"Bake 25 minutes", "Rest 5 min"}, 25},
		{"hebrew", []string{"לבשל 40 דקות"}, 40},
		{"none", []string{"Serve"}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fixedTransformer().Transform(Draft{Steps: tt.steps}, "", "")
			assert.Equal(t, tt.want, r.PrepTimeMinutes)
		})
	}
}

func TestTransformIDsAreUnique(t *testing.T) {
	tr := NewTransformer()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := tr.Transform(Draft{}, "", "").RecipeID
		require.False(t, seen[id])
		seen[id] = true
	}
}
