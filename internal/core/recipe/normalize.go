package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	firstIntegerPattern = regexp.MustCompile(`\d+`)
	firstNumberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParseTime 取出時間描述中的第一個整數作為分鐘數，找不到時回傳 20
func ParseTime(text string) int {
	match := firstIntegerPattern.FindString(text)
	if match == "" {
		return DefaultPrepTimeMinutes
	}
	minutes, err := strconv.Atoi(match)
	if err != nil {
		return DefaultPrepTimeMinutes
	}
	return minutes
}

// ParseCalories 數字直接採用（四捨五入為整數），字串取第一個整數，其餘回傳 nil
func ParseCalories(value any) *int {
	switch v := value.(type) {
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n := int(math.Round(v))
		return &n
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return ParseCalories(f)
		}
		return ParseCalories(v.String())
	case string:
		match := firstIntegerPattern.FindString(v)
		if match == "" {
			return nil
		}
		n, err := strconv.Atoi(match)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// ParseFloat 將營養欄位轉為浮點數；無法解析時回傳 nil
func ParseFloat(value any) *float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		match := firstNumberPattern.FindString(strings.TrimSpace(v))
		if match == "" {
			return nil
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// NormalizeIngredient 字串食材補上未知數量；物件食材補齊缺少的欄位
func NormalizeIngredient(value any) Ingredient {
	switch v := value.(type) {
	case Ingredient:
		if v.Quantity == "" {
			v.Quantity = UnknownQuantity
		}
		return v
	case string:
		return Ingredient{Name: v, Quantity: UnknownQuantity}
	case map[string]any:
		ing := Ingredient{
			Name:     scalarString(firstPresent(v, "name", "ingredient", "item")),
			Quantity: scalarString(firstPresent(v, "quantity", "amount", "qty")),
		}
		// amount/unit 拆開的寫法合併回 quantity
		if unit := scalarString(v["unit"]); unit != "" && ing.Quantity != "" && firstPresent(v, "quantity") == nil {
			ing.Quantity = ing.Quantity + " " + unit
		}
		if ing.Quantity == "" {
			ing.Quantity = UnknownQuantity
		}
		return ing
	case nil:
		return Ingredient{Quantity: UnknownQuantity}
	default:
		return Ingredient{Name: scalarString(v), Quantity: UnknownQuantity}
	}
}

// NormalizeIngredients 逐一正規化，結果永不為 nil
func NormalizeIngredients(values []any) []Ingredient {
	out := make([]Ingredient, 0, len(values))
	for _, v := range values {
		out = append(out, NormalizeIngredient(v))
	}
	return out
}

// NutritionFields 營養欄位的原始值，nil 代表上游未提供
type NutritionFields struct {
	Calories      any
	Protein       any
	Carbohydrates any
	Fats          any
}

// NormalizeNutrition 只有在至少一個欄位存在時才回傳營養資訊
func NormalizeNutrition(f NutritionFields) *Nutrition {
	n := &Nutrition{
		Calories:      ParseCalories(f.Calories),
		Protein:       ParseFloat(f.Protein),
		Carbohydrates: ParseFloat(f.Carbohydrates),
		Fats:          ParseFloat(f.Fats),
	}
	if n.Calories == nil && n.Protein == nil && n.Carbohydrates == nil && n.Fats == nil {
		return nil
	}
	return n
}

// NormalizeDifficulty 轉小寫；空值預設為 medium，未知值原樣保留
func NormalizeDifficulty(text string) Difficulty {
	d := strings.ToLower(strings.TrimSpace(text))
	if d == "" {
		return DifficultyMedium
	}
	return Difficulty(d)
}

// scalarString 將純量轉為字串，物件與陣列回傳空字串
func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// firstPresent 依序取第一個非空的欄位值
func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}
