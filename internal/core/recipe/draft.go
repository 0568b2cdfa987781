package recipe

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Draft 正規化後、尚未套用預設值的中間結果
type Draft struct {
	DishName            string
	Description         string
	ImageURL            string
	PrepTimeMinutes     *int // nil 表示上游沒有提供時間
	Difficulty          string
	Ingredients         []Ingredient
	Steps               []string
	CookingMethods      []string
	Nutrition           *Nutrition
	CalorieAccuracyNote string
}

// 各欄位可接受的上游鍵名，依序取第一個有值的
var (
	dishNameKeys    = []string{"dishName", "name", "dish_name", "title"}
	descriptionKeys = []string{"shortDescription", "description", "short_description"}
	imageURLKeys    = []string{"imageUrl", "image_url", "image"}
	timeKeys        = []string{"estimatedPreparationTime", "time", "prepTime", "prep_time", "prepTimeMinutes", "cooking_time"}
	difficultyKeys  = []string{"difficultyLevel", "difficulty", "difficulty_level"}
	ingredientKeys  = []string{"ingredientsUsed", "ingredients", "ingredients_used"}
	stepKeys        = []string{"preparationSteps", "steps", "instructions", "preparation_steps"}
	methodKeys      = []string{"cookingMethods", "cooking_methods", "methods"}
	noteKeys        = []string{"calorieAccuracyNote", "calorie_accuracy_note", "accuracyNote"}
	caloriesKeys    = []string{"calories", "estimatedCalories", "estimatedCaloricValue", "caloricValue", "estimated_calories"}
	proteinKeys     = []string{"protein", "proteins"}
	carbsKeys       = []string{"carbohydrates", "carbs"}
	fatsKeys        = []string{"fats", "fat"}
)

var stepMinutesPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes|minute|mins|min|דקות|דקה)`)

// DraftFrom 將解析後的回應轉為 Draft
func DraftFrom(p Payload) Draft {
	switch v := p.(type) {
	case StructuredPayload:
		return draftFromFields(v.Fields)
	case LegacyTextPayload:
		return parseLegacy(v.Text)
	default:
		return Draft{}
	}
}

// ParseDraft 解析上游原始回應
func ParseDraft(body []byte) Draft {
	return DraftFrom(ParsePayload(body))
}

type fieldSources []map[string]any

func (s fieldSources) lookup(keys []string) any {
	for _, src := range s {
		if v := firstPresent(src, keys...); v != nil {
			return v
		}
	}
	return nil
}

func (s fieldSources) text(keys []string) string {
	return scalarString(s.lookup(keys))
}

// draftFromFields 頂層、recipe 與 nutrition 子物件都視為欄位來源
func draftFromFields(fields map[string]any) Draft {
	sources := fieldSources{fields}
	if nested, ok := fields["recipe"].(map[string]any); ok {
		sources = append(sources, nested)
		if n, ok := nested["nutrition"].(map[string]any); ok {
			sources = append(sources, n)
		}
	}
	if n, ok := fields["nutrition"].(map[string]any); ok {
		sources = append(sources, n)
	}

	return Draft{
		DishName:        sources.text(dishNameKeys),
		Description:     sources.text(descriptionKeys),
		ImageURL:        sources.text(imageURLKeys),
		PrepTimeMinutes: explicitMinutes(sources.lookup(timeKeys)),
		Difficulty:      sources.text(difficultyKeys),
		Ingredients:     normalizeIngredientField(sources.lookup(ingredientKeys)),
		Steps:           normalizeSteps(sources.lookup(stepKeys)),
		CookingMethods:  normalizeList(sources.lookup(methodKeys)),
		Nutrition: NormalizeNutrition(NutritionFields{
			Calories:      sources.lookup(caloriesKeys),
			Protein:       sources.lookup(proteinKeys),
			Carbohydrates: sources.lookup(carbsKeys),
			Fats:          sources.lookup(fatsKeys),
		}),
		CalorieAccuracyNote: sources.text(noteKeys),
	}
}

func explicitMinutes(value any) *int {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		minutes := ParseTime(v)
		return &minutes
	default:
		minutes := ParseCalories(v)
		if minutes != nil && *minutes < 0 {
			zero := 0
			return &zero
		}
		return minutes
	}
}

// minutesFromSteps 取步驟文字中提到的最大分鐘數
func minutesFromSteps(steps []string) (int, bool) {
	best, found := 0, false
	for _, step := range steps {
		for _, m := range stepMinutesPattern.FindAllStringSubmatch(step, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if !found || n > best {
				best, found = n, true
			}
		}
	}
	return best, found
}

func normalizeIngredientField(value any) []Ingredient {
	switch v := value.(type) {
	case []any:
		return NormalizeIngredients(v)
	case string:
		var out []Ingredient
		for _, line := range splitLines(v) {
			for _, name := range splitList(line) {
				out = append(out, NormalizeIngredient(name))
			}
		}
		return out
	case map[string]any:
		// {"tuna": "1 can", ...}
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]Ingredient, 0, len(names))
		for _, name := range names {
			qty := scalarString(v[name])
			if qty == "" {
				qty = UnknownQuantity
			}
			out = append(out, Ingredient{Name: name, Quantity: qty})
		}
		return out
	default:
		return nil
	}
}

func normalizeSteps(value any) []string {
	var out []string
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if s := stepText(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range splitLines(v) {
			if s := stepText(line); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stepText(item any) string {
	var text string
	if m, ok := item.(map[string]any); ok {
		text = scalarString(firstPresent(m, "text", "instruction", "description", "step"))
	} else {
		text = scalarString(item)
	}
	if rest, ok := cutOrdinal(text); ok {
		return rest
	}
	if rest, ok := cutBullet(text); ok {
		return rest
	}
	return text
}

func normalizeList(value any) []string {
	var out []string
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range splitLines(v) {
			out = append(out, splitList(line)...)
		}
	}
	return out
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := cutBullet(line); ok {
			line = rest
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
