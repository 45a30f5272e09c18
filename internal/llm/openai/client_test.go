package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/llm"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, logger)
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func pdfRequest() llm.ExtractRequest {
	return llm.ExtractRequest{
		PageIndex: 2,
		Label:     constants.BalanceSheet,
		Artifact:  []byte("%PDF-1.4 single page"),
		MIMEType:  constants.MIMETypePDF,
		YearHints: []int{2024, 2023},
	}
}

func TestExtractStatement_OK(t *testing.T) {
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		fmt.Fprint(w, chatResponse(`{"statement_type":"balance sheet","line_items":[{"name":"Total assets","values":{"2024":9870,"2023":8455},"confidence":0.9}]}`))
	})

	payload, raw, err := client.ExtractStatement(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("ExtractStatement() error = %v", err)
	}
	if len(raw) == 0 {
		t.Error("raw JSON not returned")
	}
	if payload.StatementType != "balance sheet" || len(payload.LineItems) != 1 {
		t.Errorf("payload = %+v", payload)
	}

	// PDF pages ride along as a file part, not an image_url.
	messages := gotBody["messages"].([]any)
	userContent := messages[1].(map[string]any)["content"].([]any)
	attachment := userContent[1].(map[string]any)
	if attachment["type"] != "file" {
		t.Errorf("attachment type = %v, want file", attachment["type"])
	}
	fileData := attachment["file"].(map[string]any)["file_data"].(string)
	if !strings.HasPrefix(fileData, "data:application/pdf;base64,") {
		t.Errorf("file_data prefix = %.40s", fileData)
	}
}

func TestExtractStatement_ImageAttachment(t *testing.T) {
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		fmt.Fprint(w, chatResponse(`{"no_data":true}`))
	})

	req := llm.ExtractRequest{PageIndex: 1, Label: constants.Unclassified, Artifact: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}
	_, _, err := client.ExtractStatement(context.Background(), req)
	if !errors.Is(err, common.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}

	messages := gotBody["messages"].([]any)
	userContent := messages[1].(map[string]any)["content"].([]any)
	attachment := userContent[1].(map[string]any)
	if attachment["type"] != "image_url" {
		t.Errorf("attachment type = %v, want image_url", attachment["type"])
	}
}

func TestExtractStatement_RateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, _, err := client.ExtractStatement(context.Background(), pdfRequest())
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if !llm.IsRetryable(err) {
		t.Error("rate limit must be retryable")
	}
}

func TestExtractStatement_ServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, _, err := client.ExtractStatement(context.Background(), pdfRequest())
	if !errors.Is(err, common.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestExtractStatement_ClientErrorIsPermanent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, _, err := client.ExtractStatement(context.Background(), pdfRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if llm.IsRetryable(err) {
		t.Errorf("4xx rejection must not be retryable: %v", err)
	}
}

func TestExtractStatement_MalformedContent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatResponse("the page shows total assets of 9870"))
	})
	_, _, err := client.ExtractStatement(context.Background(), pdfRequest())
	if !errors.Is(err, common.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestExtractStatement_OversizedArtifact(t *testing.T) {
	called := false
	client := testClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	req := pdfRequest()
	req.Artifact = make([]byte, constants.MaxArtifactMB*1024*1024+1)
	_, _, err := client.ExtractStatement(context.Background(), req)
	if code := common.ErrorCode(err); code != common.CodeExtractionFailed {
		t.Fatalf("error code = %q, want %q", code, common.CodeExtractionFailed)
	}
	if called {
		t.Error("oversized artifact still hit the backend")
	}
}
