package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/ledgerlens/statement-extractor/internal/common"
)

// DecodePayload turns a raw model response into a StatementPayload. Flow:
// strip fences, refusal check, strict schema validation, lenient sanitize
// plus re-validation on failure, unmarshal, then the semantic checks (no-data
// detection, year-hint filtering). Failures wrap ErrMalformedResponse so the
// caller retries; a definitive empty page wraps ErrNoData, which is terminal.
func DecodePayload(content string, schema map[string]any, yearHints []int, logger *slog.Logger) (StatementPayload, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}

	content = StripFences(content)
	if content == "" {
		return StatementPayload{}, nil, common.WrapError(common.ErrMalformedResponse, "empty response")
	}
	if IsRefusal(content) {
		return StatementPayload{}, []byte(content), common.WrapError(common.ErrMalformedResponse, "model refused")
	}

	raw := []byte(content)
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		cleaned, _, sErr := SanitizeStatementJSON(raw, logger)
		if sErr != nil {
			return StatementPayload{}, raw, fmt.Errorf("schema validation failed: %v: %w", err, common.ErrMalformedResponse)
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return StatementPayload{}, raw, fmt.Errorf("schema validation failed after sanitize: %v: %w", vErr, common.ErrMalformedResponse)
		}
		raw = cleaned
	}

	var payload StatementPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return StatementPayload{}, raw, fmt.Errorf("unmarshal payload: %v: %w", err, common.ErrMalformedResponse)
	}

	if payload.NoData {
		return payload, raw, common.ErrNoData
	}
	if len(payload.LineItems) == 0 {
		return StatementPayload{}, raw, common.WrapError(common.ErrMalformedResponse, "no line items and no_data not set")
	}

	FilterYears(&payload, yearHints)
	if len(payload.LineItems) == 0 {
		// Every reported value fell outside the detected years: the page has
		// nothing usable, and asking again will not change the document.
		return payload, raw, common.ErrNoData
	}
	return payload, raw, nil
}

// FilterYears drops values outside the hint set and recomputes payload.Years
// from what survived, most-recent-first. With no hints the payload's own
// years stand: a scanned document has no text layer to detect years from, so
// extraction established them.
func FilterYears(payload *StatementPayload, yearHints []int) {
	allowed := make(map[int]struct{}, len(yearHints))
	for _, y := range yearHints {
		allowed[y] = struct{}{}
	}

	seen := make(map[int]struct{})
	kept := payload.LineItems[:0]
	for _, item := range payload.LineItems {
		for key := range item.Values {
			year, err := strconv.Atoi(key)
			if err != nil {
				delete(item.Values, key)
				continue
			}
			if len(allowed) > 0 {
				if _, ok := allowed[year]; !ok {
					delete(item.Values, key)
					continue
				}
			}
			seen[year] = struct{}{}
		}
		if len(item.Values) > 0 {
			kept = append(kept, item)
		}
	}
	payload.LineItems = kept

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	payload.Years = years
}
