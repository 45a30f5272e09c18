package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerlens/statement-extractor/internal/common"
)

func TestDecodePayload_StrictValid(t *testing.T) {
	content := "```json\n" + `{
		"statement_type": "balance sheet",
		"years": [2024, 2023],
		"line_items": [
			{"category": "Current Assets", "name": "Cash and cash equivalents", "values": {"2024": 1920, "2023": 1080}, "confidence": 0.95}
		]
	}` + "\n```"

	payload, raw, err := DecodePayload(content, BuildStatementJSONSchema(), nil, discardLogger())
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if len(raw) == 0 {
		t.Error("raw JSON not returned")
	}
	if payload.StatementType != "balance sheet" {
		t.Errorf("statement_type = %q", payload.StatementType)
	}
	if len(payload.LineItems) != 1 || payload.LineItems[0].Values["2024"] != 1920 {
		t.Errorf("line items = %+v", payload.LineItems)
	}
	// Years are recomputed from values, most recent first.
	if len(payload.Years) != 2 || payload.Years[0] != 2024 || payload.Years[1] != 2023 {
		t.Errorf("years = %v", payload.Years)
	}
}

func TestDecodePayload_LenientCoercion(t *testing.T) {
	// String amounts fail strict validation but survive the sanitize pass.
	content := `{
		"statement_type": "income statement",
		"line_items": [
			{"name": "Net income", "values": {"2024": "1,480", "2023": "(90)"}}
		]
	}`

	payload, _, err := DecodePayload(content, BuildStatementJSONSchema(), nil, discardLogger())
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	v := payload.LineItems[0].Values
	if v["2024"] != 1480 || v["2023"] != -90 {
		t.Errorf("values = %v", v)
	}
}

func TestDecodePayload_NoData(t *testing.T) {
	payload, _, err := DecodePayload(`{"no_data": true}`, BuildStatementJSONSchema(), nil, discardLogger())
	if !errors.Is(err, common.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if !payload.NoData {
		t.Error("payload.NoData not set")
	}
	if IsRetryable(err) {
		t.Error("no-data answer must not be retryable")
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"refusal", "I am unable to read this document."},
		{"not json", "here are the line items: cash 100"},
		{"empty items without no_data", `{"statement_type": "balance sheet", "line_items": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodePayload(tt.content, BuildStatementJSONSchema(), nil, discardLogger())
			if !errors.Is(err, common.ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
			if !IsRetryable(err) {
				t.Error("malformed response must be retryable")
			}
		})
	}
}

func TestDecodePayload_YearHintsFilter(t *testing.T) {
	content := `{
		"statement_type": "balance sheet",
		"line_items": [
			{"name": "Total assets", "values": {"2024": 9870, "2023": 8455, "2019": 7000}},
			{"name": "Goodwill", "values": {"2019": 500}}
		]
	}`

	payload, _, err := DecodePayload(content, BuildStatementJSONSchema(), []int{2024, 2023}, discardLogger())
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	// The 2019 value falls outside the detected years; the goodwill item
	// loses its only value and disappears.
	if len(payload.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(payload.LineItems))
	}
	if _, ok := payload.LineItems[0].Values["2019"]; ok {
		t.Error("out-of-hint year survived the filter")
	}
	if len(payload.Years) != 2 || payload.Years[0] != 2024 {
		t.Errorf("years = %v, want [2024 2023]", payload.Years)
	}
}

func TestDecodePayload_AllValuesFiltered(t *testing.T) {
	content := `{
		"statement_type": "balance sheet",
		"line_items": [{"name": "Total assets", "values": {"2019": 7000}}]
	}`
	_, _, err := DecodePayload(content, BuildStatementJSONSchema(), []int{2024, 2023}, discardLogger())
	if !errors.Is(err, common.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData when nothing survives the hint filter", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no data", common.ErrNoData, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", common.ErrRateLimited, true},
		{"malformed", common.ErrMalformedResponse, true},
		{"backend unavailable", common.ErrBackendUnavailable, true},
		{"wrapped rate limit", common.WrapError(common.ErrRateLimited, "status 429"), true},
		{"permanent", errors.New("status 401"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestValidateJSONAgainstSchema_RejectsBadShapes(t *testing.T) {
	schema := BuildStatementJSONSchema()
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"valid", `{"line_items":[{"name":"Cash","values":{"2024":1.5}}]}`, true},
		{"non-year value key", `{"line_items":[{"name":"Cash","values":{"total":1}}]}`, false},
		{"string value", `{"line_items":[{"name":"Cash","values":{"2024":"1,920"}}]}`, false},
		{"missing name", `{"line_items":[{"values":{"2024":1}}]}`, false},
		{"unknown top key", `{"thoughts":"...","line_items":[]}`, false},
		{"confidence out of range", `{"line_items":[{"name":"Cash","values":{"2024":1},"confidence":1.5}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONAgainstSchema(schema, []byte(tt.data))
			if (err == nil) != tt.ok {
				t.Errorf("ValidateJSONAgainstSchema() err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
