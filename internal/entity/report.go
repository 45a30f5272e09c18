package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/statement-extractor/constants"
)

// PageSummary is the per-page outcome surfaced in the run report.
type PageSummary struct {
	Index      int                     `json:"index"`
	Label      constants.StatementType `json:"label"`
	LabelScore float64                 `json:"label_score"`
	Status     constants.PageStatus    `json:"status"`
	Attempts   int                     `json:"attempts,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// ReportError is one non-fatal (or, for DOCUMENT_UNREADABLE, fatal) failure
// attached to the run report so partial output is never a silent success.
type ReportError struct {
	Stage     string `json:"stage"`
	Code      string `json:"code"`
	PageIndex int    `json:"page_index,omitempty"`
	Label     string `json:"label,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

// RunReport is the externally visible result of one pipeline run: the
// template record plus enough metadata for a caller to distinguish "no data
// available" from "extraction failed".
type RunReport struct {
	RunID       uuid.UUID            `json:"run_id"`
	StartedAt   time.Time            `json:"started_at"`
	DurationMS  int64                `json:"duration_ms"`
	Success     bool                 `json:"success"`
	Status      constants.RunStatus  `json:"status"`
	Format      constants.FileFormat `json:"format,omitempty"`
	PageCount   int                  `json:"page_count"`
	Pages       []PageSummary        `json:"pages,omitempty"`
	Years       []int                `json:"years,omitempty"`
	Populated   int                  `json:"populated_fields"`
	Errors      []ReportError        `json:"errors,omitempty"`
	Record      *TemplateRecord      `json:"record,omitempty"`
}
