package recipe

import (
	"bufio"
	"regexp"
	"strings"
	"unicode"
)

type section int

const (
	sectionNone section = iota
	sectionAccuracyNote
	sectionDishName
	sectionDescription
	sectionIngredients
	sectionSteps
	sectionCookingMethods
	sectionTime
	sectionDifficulty
	sectionCalories
)

// 依序比對，較具體的標題放前面（"Calorie Accuracy Note" 不能被當成熱量）
var sectionMarkers = []struct {
	section section
	markers []string
}{
	{sectionAccuracyNote, []string{"accuracy note", "accuracy"}},
	{sectionDishName, []string{"dish name", "recipe name"}},
	{sectionDescription, []string{"description"}},
	{sectionIngredients, []string{"ingredient"}},
	{sectionSteps, []string{"step", "instruction"}},
	{sectionCookingMethods, []string{"cooking method"}},
	{sectionTime, []string{"time"}},
	{sectionDifficulty, []string{"difficulty"}},
	{sectionCalories, []string{"caloric", "calorie"}},
}

var (
	ordinalPattern = regexp.MustCompile(`^\d+[.)]\s*`)
	unknownWords   = []string{"unknown", "cannot", "can't", "not determin", "n/a", "unavailable"}
)

// parseLegacy 逐行掃描純文字回應，依目前所在段落收集欄位
func parseLegacy(text string) Draft {
	var (
		d            Draft
		current      = sectionNone
		description  []string
		note         []string
		calorieText  string
		calorieKnown = true
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if sec, inline, ok := matchHeader(line); ok {
			current = sec
			if inline == "" {
				continue
			}
			line = inline
		}

		switch current {
		case sectionDishName:
			if d.DishName == "" {
				d.DishName = stripMarkup(line)
			}
		case sectionDescription:
			description = append(description, line)
		case sectionIngredients:
			if name, ok := cutBullet(line); ok && name != "" {
				d.Ingredients = append(d.Ingredients, Ingredient{Name: name, Quantity: UnknownQuantity})
			}
		case sectionSteps:
			if step, ok := cutOrdinal(line); ok && step != "" {
				d.Steps = append(d.Steps, step)
			} else if step, ok := cutBullet(line); ok && step != "" {
				d.Steps = append(d.Steps, step)
			}
		case sectionCookingMethods:
			if method, ok := cutBullet(line); ok {
				line = method
			}
			d.CookingMethods = append(d.CookingMethods, splitList(line)...)
		case sectionTime:
			if d.PrepTimeMinutes == nil {
				minutes := ParseTime(line)
				d.PrepTimeMinutes = &minutes
			}
		case sectionDifficulty:
			if d.Difficulty == "" {
				d.Difficulty = stripMarkup(line)
			}
		case sectionCalories:
			if calorieText == "" && calorieKnown {
				if meansUnknown(line) {
					calorieKnown = false
				} else {
					calorieText = line
				}
			}
		case sectionAccuracyNote:
			note = append(note, line)
		}
	}

	d.Description = strings.Join(description, " ")
	d.CalorieAccuracyNote = strings.Join(note, " ")
	if calorieText != "" {
		d.Nutrition = NormalizeNutrition(NutritionFields{Calories: calorieText})
	}
	return d
}

// matchHeader 判斷是否為段落標題。
// 有冒號時只看冒號前的文字；沒有冒號時每個單字都必須大寫開頭。
func matchHeader(line string) (section, string, bool) {
	if _, ok := cutBullet(line); ok {
		return sectionNone, "", false
	}
	if _, ok := cutOrdinal(line); ok {
		return sectionNone, "", false
	}

	label, inline, hasColon := strings.Cut(stripMarkup(line), ":")
	if !hasColon && !isTitleCase(label) {
		return sectionNone, "", false
	}

	lower := strings.ToLower(label)
	for _, entry := range sectionMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(lower, marker) {
				return entry.section, strings.TrimSpace(stripMarkup(inline)), true
			}
		}
	}
	return sectionNone, "", false
}

func isTitleCase(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// stripMarkup 去除 markdown 標題與粗體符號
func stripMarkup(line string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "#*_ "))
}

func cutBullet(line string) (string, bool) {
	for _, bullet := range []string{"-", "*", "•"} {
		if rest, ok := strings.CutPrefix(line, bullet); ok {
			// "**粗體**" 不是項目符號
			if bullet == "*" && strings.HasPrefix(rest, "*") {
				return "", false
			}
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func cutOrdinal(line string) (string, bool) {
	loc := ordinalPattern.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(line[loc[1]:]), true
}

func meansUnknown(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range unknownWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func splitList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
