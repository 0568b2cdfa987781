package recipe

import (
	"strings"

	"go.uber.org/zap"

	"recipe-keeper/internal/pkg/common"
)

// Payload 上游回應解析後的型別，只有 StructuredPayload 與 LegacyTextPayload 兩種
type Payload interface {
	isPayload()
}

// StructuredPayload JSON 物件形式的回應
type StructuredPayload struct {
	Fields map[string]any
}

// LegacyTextPayload 以標題分段的純文字回應
type LegacyTextPayload struct {
	Text string
}

func (StructuredPayload) isPayload() {}
func (LegacyTextPayload) isPayload() {}

// ParsePayload 先嘗試 JSON，失敗時擷取 {...} 區段，最後退回純文字解析；不會失敗
func ParsePayload(body []byte) Payload {
	text := strings.TrimSpace(string(body))

	value, ok := decodeValue(text)
	if ok {
		// JSON 字串包著的內容再解一次
		if inner, isString := value.(string); isString {
			text = strings.TrimSpace(inner)
			value, ok = decodeValue(text)
		}
	}
	if ok {
		if p, matched := structuredFrom(value); matched {
			return p
		}
	}

	if obj, found := common.ExtractJSONObject(text); found {
		if value, ok := decodeValue(obj); ok {
			if p, matched := structuredFrom(value); matched {
				return p
			}
		}
	}

	return LegacyTextPayload{Text: text}
}

func decodeValue(text string) (any, bool) {
	if text == "" {
		return nil, false
	}
	var v any
	if err := common.ParseJSON(text, &v); err != nil {
		return nil, false
	}
	return v, true
}

func structuredFrom(value any) (Payload, bool) {
	switch v := value.(type) {
	case map[string]any:
		return StructuredPayload{Fields: v}, true
	case []any:
		if len(v) == 0 {
			return StructuredPayload{Fields: map[string]any{}}, true
		}
		if len(v) > 1 {
			common.LogDebug("上游回傳多個食譜選項，只保留第一個",
				zap.Int("discarded", len(v)-1),
			)
		}
		switch first := v[0].(type) {
		case map[string]any:
			return StructuredPayload{Fields: first}, true
		case string:
			return LegacyTextPayload{Text: strings.TrimSpace(first)}, true
		}
	}
	return nil, false
}
