package collection

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/store"
)

const fallback = "https://images.example/fallback.jpg"

func entity(id, userID, recipeID string, createdAt int64) store.Entity {
	return store.Entity{ID: id, Fields: map[string]any{
		"recipeId":    recipeID,
		"userId":      userID,
		"dishName":    "Dish " + recipeID,
		"createdAt":   json.Number(fmt.Sprint(createdAt)),
		"ingredients": []any{map[string]any{"name": "egg", "quantity": "2"}},
		"steps":       []any{"boil"},
	}}
}

func TestReconstructFiltersByOwner(t *testing.T) {
	entities := []store.Entity{
		entity("e1", "user-a", "r1", 2),
		entity("e2", "user-b", "r2", 1),
	}

	views := Reconstruct(entities, "user-a", fallback)
	require.Len(t, views, 1)
	assert.Equal(t, "user-a", views["r1"].UserID)
	assert.NotContains(t, views, "r2")
}

func TestReconstructWithoutUserIsEmpty(t *testing.T) {
	entities := []store.Entity{entity("e1", "", "r1", 1), entity("e2", "user-a", "r2", 1)}
	assert.Empty(t, Reconstruct(entities, "", fallback))
}

func TestReconstructOwnershipProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	owners := []string{"a", "b", "c", ""}

	for round := 0; round < 50; round++ {
		var entities []store.Entity
		want := map[string]bool{}
		for i := 0; i < rng.Intn(20); i++ {
			owner := owners[rng.Intn(len(owners))]
			recipeID := fmt.Sprintf("r-%d-%d", round, i)
			entities = append(entities, entity("e-"+recipeID, owner, recipeID, int64(i)))
			if owner == "a" {
				want[recipeID] = true
			}
		}

		views := Reconstruct(entities, "a", fallback)
		assert.Len(t, views, len(want))
		for id, v := range views {
			assert.True(t, want[id])
			assert.Equal(t, "a", v.UserID)
		}
	}
}

func TestReconstructDuplicateRecipeIDKeepsFirst(t *testing.T) {
	newer := entity("e-new", "u", "dup", 20)
	newer.Fields["dishName"] = "newer"
	older := entity("e-old", "u", "dup", 10)

	views := Reconstruct([]store.Entity{newer, older}, "u", fallback)
	require.Len(t, views, 1)
	assert.Equal(t, "newer", views["dup"].DishName)
}

func TestFromEntityRepairsShape(t *testing.T) {
	e := store.Entity{ID: "ent-1", Fields: map[string]any{
		"userId":          "u",
		"ingredients":     "not a list",
		"steps":           map[string]any{"0": "x"},
		"calories":        json.Number("420"),
		"prepTimeMinutes": json.Number("15"),
		"difficulty":      "Hard",
		"imageUrl":        "",
	}}

	v := FromEntity(e, fallback)
	assert.Equal(t, "ent-1", v.RecipeID, "falls back to the entity id")
	assert.Equal(t, []recipe.Ingredient{}, v.Ingredients)
	assert.Equal(t, []string{}, v.Steps)
	assert.Equal(t, []string{}, v.CookingMethods)
	assert.Equal(t, Image{Type: "url", Value: fallback}, v.Image)
	assert.Equal(t, 15, v.PrepTimeMinutes)
	assert.Equal(t, "hard", v.Difficulty)
	require.NotNil(t, v.Nutrition.Calories)
	assert.Equal(t, 420, *v.Nutrition.Calories)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nutrition":{"calories":420,"protein":null,"carbohydrates":null,"fats":null}`)
	assert.Contains(t, string(data), `"ingredients":[]`)
}

func TestFromEntityKeepsImageURL(t *testing.T) {
	e := entity("e", "u", "r", 1)
	e.Fields["imageUrl"] = "http://img/x.jpg"
	assert.Equal(t, Image{Type: "url", Value: "http://img/x.jpg"}, FromEntity(e, fallback).Image)
}

func TestRepairIsIdempotent(t *testing.T) {
	inputs := []any{
		nil,
		"text",
		42,
		[]any{},
		[]any{"a", json.Number("3"), map[string]any{"name": "b"}, nil, []any{"nested"}},
		[]any{map[string]any{"ingredient": "salt", "amount": "1 tsp"}},
		[]string{"x", "y"},
	}

	for i, in := range inputs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			ingOnce := RepairIngredients(in)
			assert.Equal(t, ingOnce, RepairIngredients(ingOnce))
			require.NotNil(t, ingOnce)

			stepsOnce := RepairSteps(in)
			assert.Equal(t, stepsOnce, RepairSteps(stepsOnce))
			require.NotNil(t, stepsOnce)
		})
	}
}

func TestFromRecipe(t *testing.T) {
	cal := 300
	r := &recipe.Recipe{
		RecipeID:  "r",
		UserID:    "u",
		DishName:  "Soup",
		Nutrition: &recipe.Nutrition{Calories: &cal},
		CreatedAt: 5,
	}

	v := FromRecipe(r, fallback)
	assert.Equal(t, fallback, v.Image.Value)
	assert.Equal(t, []recipe.Ingredient{}, v.Ingredients)
	assert.Equal(t, &cal, v.Nutrition.Calories)
	assert.Nil(t, v.Nutrition.Fats)
}

func TestSorted(t *testing.T) {
	views := map[string]RecipeView{
		"a": {RecipeID: "a", CreatedAt: 1},
		"b": {RecipeID: "b", CreatedAt: 3},
		"c": {RecipeID: "c", CreatedAt: 3},
	}
	out := Sorted(views)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{out[0].RecipeID, out[1].RecipeID, out[2].RecipeID})
}
