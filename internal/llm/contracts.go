package llm

import (
	"context"
	"errors"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
)

// LineItemPayload is one extracted row as the model reports it. Values are
// keyed by the 4-digit year heading the value appeared under.
type LineItemPayload struct {
	Category   string             `json:"category,omitempty"`
	Name       string             `json:"name"`
	Values     map[string]float64 `json:"values"`
	Confidence float64            `json:"confidence,omitempty"` // 0..1
}

// StatementPayload is the normalized shape we want from the model for one
// page. NoData marks a definitive "nothing extractable here" answer.
type StatementPayload struct {
	StatementType string            `json:"statement_type,omitempty"`
	Years         []int             `json:"years,omitempty"`
	LineItems     []LineItemPayload `json:"line_items,omitempty"`
	NoData        bool              `json:"no_data,omitempty"`
}

// ExtractRequest carries one page artifact to an inference backend. Label is
// Unclassified for scanned pages that could not be scored; the backend then
// identifies the statement type itself.
type ExtractRequest struct {
	PageIndex int
	Label     constants.StatementType
	Artifact  []byte
	MIMEType  string

	// YearHints are the fiscal years detected in the document's text layer.
	// Non-empty hints bound the years a payload may report.
	YearHints []int

	// AllowedTypes enumerates the statement_type values the model may pick
	// when Label is Unclassified.
	AllowedTypes []string
}

// StatementExtractor is the interface the orchestrator depends on.
type StatementExtractor interface {
	ExtractStatement(ctx context.Context, req ExtractRequest) (StatementPayload, []byte /*rawJSON*/, error)
}

// IsRetryable reports whether an extraction failure is transient. A no-data
// answer is definitive and a canceled context is deliberate; everything the
// backend might answer differently next time (rate limit, malformed output,
// timeout, 5xx) is retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, common.ErrNoData) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, common.ErrRateLimited) ||
		errors.Is(err, common.ErrMalformedResponse) ||
		errors.Is(err, common.ErrBackendUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
