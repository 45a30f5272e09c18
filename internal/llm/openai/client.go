package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/llm"
)

// ExtractStatement implements llm.StatementExtractor over chat/completions
// with the page artifact attached: an image_url part for image pages, a file
// part for single-page PDFs.
func (c *Client) ExtractStatement(ctx context.Context, req llm.ExtractRequest) (llm.StatementPayload, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"run_id", common.RunIDFromContext(ctx),
		"backend", "openai",
		"model", c.cfg.Model,
		"page", req.PageIndex,
		"label", req.Label,
		"artifact_bytes", len(req.Artifact),
		"mime", req.MIMEType,
		"year_hints", req.YearHints,
	)

	if len(req.Artifact) > constants.MaxArtifactMB*1024*1024 {
		return llm.StatementPayload{}, nil, common.NewAppError(common.CodeExtractionFailed,
			fmt.Sprintf("page %d artifact exceeds %d MB vision limit", req.PageIndex, constants.MaxArtifactMB), nil)
	}

	schema := llm.BuildStatementJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildUserPrompt(req)},
				attachmentPart(req),
			}},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		err = classifyTransportError(err, status)
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StatementPayload{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StatementPayload{}, raw, fmt.Errorf("decode openai response: %v: %w", err, common.ErrMalformedResponse)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StatementPayload{}, raw, common.WrapError(common.ErrMalformedResponse, "no choices in openai response")
	}

	payload, rawContent, err := llm.DecodePayload(cc.Choices[0].Message.Content, schema, req.YearHints, c.logger)
	if err != nil {
		if errors.Is(err, common.ErrNoData) {
			c.logger.Info("llm.extract.no_data",
				"req_id", rid, "page", req.PageIndex,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		} else {
			c.logger.Error("llm.extract.parse_error",
				"req_id", rid, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
		return payload, rawContent, err
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"page", req.PageIndex,
		"statement_type", payload.StatementType,
		"line_items", len(payload.LineItems),
		"years", payload.Years,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return payload, rawContent, nil
}

// classifyTransportError maps HTTP failures onto the retry taxonomy: 429 is
// a rate-limit signal, 5xx and transport failures are transient, other 4xx
// are permanent rejections.
func classifyTransportError(err error, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("openai status 429: %w", common.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("openai status %d: %w", status, common.ErrBackendUnavailable)
	case status > 0:
		return fmt.Errorf("openai request rejected (status %d): %v", status, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("openai transport: %v: %w", err, common.ErrBackendUnavailable)
	}
}

func attachmentPart(req llm.ExtractRequest) map[string]any {
	if req.MIMEType == constants.MIMETypePDF {
		return map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  fmt.Sprintf("page_%d.pdf", req.PageIndex),
				"file_data": llm.DataURL(req.MIMEType, req.Artifact),
			},
		}
	}
	return map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": llm.DataURL(req.MIMEType, req.Artifact)},
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
