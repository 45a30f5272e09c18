package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	reYearKey = regexp.MustCompile(`^(19|20)\d{2}$`)

	// Phrases that mark a refusal instead of a parseable payload.
	refusalPhrases = []string{
		"i am unable to",
		"i cannot fulfill",
		"i cannot answer",
		"i cannot provide",
		"as a large language model",
	}
)

// StripFences removes a surrounding markdown code fence. Models wrap JSON in
// ```json blocks often enough that this runs on every response.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsRefusal reports whether the response text is a refusal rather than a
// payload.
func IsRefusal(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// SanitizeStatementJSON normalizes a payload that failed strict validation so
// it can be re-validated:
//   - coerces formatted amount strings ("1,234.50", "(320)", "$9,870") and
//     year-string entries to numbers
//   - drops null values, empty names, non-year value keys, and unknown keys
//   - clamps confidence into [0,1]
//
// Returns the cleaned JSON plus a list of what was dropped or coerced.
func SanitizeStatementJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string

	// statement_type: keep trimmed non-empty strings only.
	if v, ok := m["statement_type"]; ok {
		s, isStr := v.(string)
		if s = strings.TrimSpace(s); !isStr || s == "" {
			delete(m, "statement_type")
			dropped = append(dropped, "statement_type(empty)")
		} else {
			m["statement_type"] = s
		}
	}

	// years: accept ints and 4-digit strings.
	if v, ok := m["years"]; ok {
		years, isList := v.([]any)
		if !isList {
			delete(m, "years")
			dropped = append(dropped, "years(type)")
		} else {
			cleaned := make([]any, 0, len(years))
			for _, y := range years {
				switch t := y.(type) {
				case float64:
					cleaned = append(cleaned, t)
				case string:
					if reYearKey.MatchString(strings.TrimSpace(t)) {
						n, _ := strconv.Atoi(strings.TrimSpace(t))
						cleaned = append(cleaned, float64(n))
						dropped = append(dropped, "years(coerced)")
					} else {
						dropped = append(dropped, "years(bad entry)")
					}
				default:
					dropped = append(dropped, "years(bad entry)")
				}
			}
			if len(cleaned) > 0 {
				m["years"] = cleaned
			} else {
				delete(m, "years")
			}
		}
	}

	if v, ok := m["line_items"]; ok {
		items, isList := v.([]any)
		if !isList {
			delete(m, "line_items")
			dropped = append(dropped, "line_items(type)")
		} else {
			cleaned := make([]any, 0, len(items))
			for i, item := range items {
				entry, oops := sanitizeLineItem(item, i)
				dropped = append(dropped, oops...)
				if entry != nil {
					cleaned = append(cleaned, entry)
				}
			}
			m["line_items"] = cleaned
		}
	}

	// no_data: tolerate "true"/"false" strings.
	if v, ok := m["no_data"].(string); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			delete(m, "no_data")
			dropped = append(dropped, "no_data(type)")
		} else {
			m["no_data"] = b
			dropped = append(dropped, "no_data(coerced)")
		}
	}

	// Unknown top-level keys break additionalProperties:false.
	for k := range m {
		switch k {
		case "statement_type", "years", "line_items", "no_data":
		default:
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.sanitize.applied", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizeLineItem(item any, idx int) (map[string]any, []string) {
	tag := func(what string) string { return fmt.Sprintf("line_items[%d].%s", idx, what) }

	entry, isMap := item.(map[string]any)
	if !isMap {
		return nil, []string{tag("(type)")}
	}

	var dropped []string

	name, _ := entry["name"].(string)
	if name = strings.TrimSpace(name); name == "" {
		return nil, []string{tag("name(empty)")}
	}
	entry["name"] = name

	if v, ok := entry["category"]; ok {
		s, isStr := v.(string)
		if s = strings.TrimSpace(s); !isStr || s == "" {
			delete(entry, "category")
			dropped = append(dropped, tag("category(empty)"))
		} else {
			entry["category"] = s
		}
	}

	values, isMap := entry["values"].(map[string]any)
	if !isMap {
		return nil, append(dropped, tag("values(type)"))
	}
	for k, v := range values {
		key := strings.TrimSpace(k)
		if !reYearKey.MatchString(key) {
			delete(values, k)
			dropped = append(dropped, tag("values."+k+"(key)"))
			continue
		}
		switch t := v.(type) {
		case float64:
			if key != k {
				delete(values, k)
				values[key] = t
			}
		case string:
			f, ok := ParseAmount(t)
			if !ok {
				delete(values, k)
				dropped = append(dropped, tag("values."+k+"(value)"))
				continue
			}
			delete(values, k)
			values[key] = f
			dropped = append(dropped, tag("values."+key+"(coerced)"))
		default:
			delete(values, k)
			dropped = append(dropped, tag("values."+k+"(value)"))
		}
	}
	if len(values) == 0 {
		return nil, append(dropped, tag("values(empty)"))
	}

	if v, ok := entry["confidence"]; ok {
		f, coerced := v.(float64)
		if !coerced {
			if s, isStr := v.(string); isStr {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					delete(entry, "confidence")
					dropped = append(dropped, tag("confidence(type)"))
				} else {
					f, coerced = parsed, true
					dropped = append(dropped, tag("confidence(coerced)"))
				}
			} else {
				delete(entry, "confidence")
				dropped = append(dropped, tag("confidence(type)"))
			}
		}
		if coerced {
			switch {
			case f < 0:
				entry["confidence"] = 0.0
				dropped = append(dropped, tag("confidence(clamped)"))
			case f > 1:
				entry["confidence"] = 1.0
				dropped = append(dropped, tag("confidence(clamped)"))
			default:
				entry["confidence"] = f
			}
		}
	}

	for k := range entry {
		switch k {
		case "category", "name", "values", "confidence":
		default:
			delete(entry, k)
			dropped = append(dropped, tag(k+"(unknown)"))
		}
	}
	return entry, dropped
}

// ParseAmount parses a printed financial amount: optional parentheses for
// negatives, currency symbols, thousands separators, trailing percent.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '£', '€', ' ':
			return -1
		}
		return r
	}, s)
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}
