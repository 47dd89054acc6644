package verify

import (
	"fmt"
	"strconv"
)

// view is a loosely typed JSON response. Checks read through it so that a
// malformed response produces failures rather than decode errors.
type view map[string]any

func (v view) has(key string) bool {
	_, ok := v[key]
	return ok
}

// present reports whether key holds a non-null value.
func (v view) present(key string) bool {
	return v[key] != nil
}

// str returns a string field, or "" when missing or not a string.
func (v view) str(key string) string {
	s, _ := v[key].(string)
	return s
}

// num returns a numeric field and whether it is a number.
func (v view) num(key string) (float64, bool) {
	f, ok := v[key].(float64)
	return f, ok
}

// confidence returns the numeric confidence, or def when it is missing or
// not a number.
func (v view) confidence(def float64) float64 {
	if f, ok := v.num("confidence"); ok {
		return f
	}
	return def
}

func (v view) list(key string) []any {
	l, _ := v[key].([]any)
	return l
}

// nonEmpty reports whether key holds a non-empty list, string or object.
func (v view) nonEmpty(key string) bool {
	switch x := v[key].(type) {
	case nil:
		return false
	case []any:
		return len(x) > 0
	case string:
		return x != ""
	case map[string]any:
		return len(x) > 0
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}

func (v view) obj(key string) (view, bool) {
	o, ok := v[key].(map[string]any)
	return view(o), ok
}

// docIDs returns the doc_id of each object in a list field.
func (v view) docIDs(key string) []string {
	var out []string
	for _, item := range v.list(key) {
		o, ok := item.(map[string]any)
		if !ok {
			out = append(out, "")
			continue
		}
		id, _ := o["doc_id"].(string)
		out = append(out, id)
	}
	return out
}

// show renders a JSON value for messages; null renders as "null".
func show(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
