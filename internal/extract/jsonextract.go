package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var fencedRe = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// firstJSONObject scans free-form model output for the first syntactically
// valid top-level JSON object, then falls back to a fenced code block. Used
// by the create+JSON fallback, where the model was asked for JSON-only
// output but may still wrap it in prose or markdown.
func firstJSONObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.New("пустой ответ модели")
	}

	for idx := 0; idx < len(text); idx++ {
		if text[idx] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[idx:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil {
			return obj, nil
		}
	}

	if m := fencedRe.FindStringSubmatch(text); m != nil {
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, eris.New("в ответе модели не найден валидный JSON объект")
}
