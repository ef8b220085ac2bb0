package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// NormalizeReportJSON coerces a model reply towards the report schema:
//   - removes unknown keys
//   - fills missing fields with null
//   - trims strings and maps "", "null", "n/a" to null
//   - renders numbers and booleans as strings, joins string lists with ", "
//   - nulls anything else (objects, mixed lists)
//
// It returns the rewritten document and a list of the adjustments made.
func NormalizeReportJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 8)
	for k := range maps.Clone(m) {
		if !slices.Contains(FieldNames, k) {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	for _, k := range FieldNames {
		v, ok := m[k]
		if !ok {
			m[k] = nil
			changed = append(changed, k+"(missing)")
			continue
		}
		switch t := v.(type) {
		case nil:
		case string:
			s := strings.TrimSpace(t)
			if isNullish(s) {
				m[k] = nil
				changed = append(changed, k+"(empty)")
			} else if s != t {
				m[k] = s
			}
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
			changed = append(changed, k+"(number)")
		case bool:
			m[k] = strconv.FormatBool(t)
			changed = append(changed, k+"(bool)")
		case []any:
			if s, ok := joinStrings(t); ok {
				m[k] = s
				changed = append(changed, k+"(list)")
			} else {
				m[k] = nil
				changed = append(changed, k+"(type)")
			}
		default:
			m[k] = nil
			changed = append(changed, k+"(type)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "changed", changed)
	}
	return out, changed, nil
}

func isNullish(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "unknown":
		return true
	}
	return false
}

func joinStrings(items []any) (any, bool) {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, true
	}
	return strings.Join(parts, ", "), true
}
