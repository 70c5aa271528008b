package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// parseYear accepts integer years given as numbers or strings ("2020").
// Sub-annual periods such as "2020-Q1" are rejected.
func parseYear(v any) (int, bool) {
	var year int
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			year = int(i)
		} else if f, err := t.Float64(); err == nil && f == math.Trunc(f) {
			year = int(f)
		} else {
			return 0, false
		}
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		year = int(t)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		year = i
	default:
		return 0, false
	}
	if year <= 0 || year > 9999 {
		return 0, false
	}
	return year, true
}

// parseValue returns false for null, empty, non-numeric and non-finite values.
func parseValue(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// unwrap reads a field that is either a plain string or a one-level
// {id, value} object and returns its code and label.
func unwrap(v any) (code, label string, ok bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s, s != ""
	case map[string]any:
		id := stringOf(t["id"])
		val := stringOf(t["value"])
		code, label = id, val
		if code == "" {
			code = val
		}
		if label == "" {
			label = id
		}
		return code, label, code != ""
	}
	return "", "", false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

// firstOf returns the first present, non-null field among keys.
func firstOf(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// asList flattens a node that is either a single object or an array of objects.
func asList(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func matchesCode(want string, candidates ...string) bool {
	if want == "" {
		return true
	}
	for _, c := range candidates {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}
