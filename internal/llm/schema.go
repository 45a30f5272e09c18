package llm

// BuildStatementJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the backend as an output constraint and also use
// it locally to validate responses. statement_type stays a free string on
// purpose: models echo many synonyms and canonicalization happens after
// parsing, not in the validator.
func BuildStatementJSONSchema() map[string]any {
	values := map[string]any{
		"type":                 "object",
		"minProperties":        1,
		"additionalProperties": false,
		"patternProperties": map[string]any{
			`^(19|20)\d{2}$`: map[string]any{"type": "number"},
		},
	}

	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"category":   map[string]any{"type": "string"},
			"name":       map[string]any{"type": "string", "minLength": 1},
			"values":     values,
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"name", "values"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"statement_type": map[string]any{"type": "string"},
			"years": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer", "minimum": 1900, "maximum": 2099},
			},
			"line_items": map[string]any{"type": "array", "items": lineItem},
			"no_data":    map[string]any{"type": "boolean"},
		},
	}
}
