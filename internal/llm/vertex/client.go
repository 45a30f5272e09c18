// Package vertex implements llm.StatementExtractor on Vertex AI Gemini
// models. Page artifacts are passed inline as blobs; responses are forced to
// JSON via the generation config.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"

	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/llm"
)

// Config for the Vertex AI client.
type Config struct {
	ProjectID   string
	Region      string // default us-central1
	Model       string // default gemini-1.5-pro
	Temperature float32
}

type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("vertex: project id is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// ExtractStatement sends the page artifact and prompts to Gemini and decodes
// the JSON payload. A fresh GenerativeModel is configured per call: the
// system instruction varies by label and the orchestrator calls concurrently.
func (c *Client) ExtractStatement(ctx context.Context, req llm.ExtractRequest) (llm.StatementPayload, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"run_id", common.RunIDFromContext(ctx),
		"backend", "vertex",
		"model", c.cfg.Model,
		"page", req.PageIndex,
		"label", req.Label,
		"artifact_bytes", len(req.Artifact),
		"mime", req.MIMEType,
		"year_hints", req.YearHints,
	)

	model := c.base.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.BuildSystemPrompt(req))},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.cfg.Temperature),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: req.MIMEType, Data: req.Artifact},
		genai.Text(llm.BuildUserPrompt(req)),
	)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("vertex generate: %v: %w", err, common.ErrBackendUnavailable)
		}
		c.logger.Error("llm.extract.backend_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StatementPayload{}, nil, err
	}

	content := textContent(resp)
	if content == "" {
		c.logger.Error("llm.extract.empty_response",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StatementPayload{}, nil, common.WrapError(common.ErrMalformedResponse, "no text parts in vertex response")
	}

	schema := llm.BuildStatementJSONSchema()
	payload, rawContent, err := llm.DecodePayload(content, schema, req.YearHints, c.logger)
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

// textContent concatenates the text parts of the first candidate.
func textContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
