package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/statement-extractor/constants"
)

// TemplateRow is one fixed output row. Values has one positional slot per
// year column (most-recent-first); nil slots are years the extraction did
// not cover. Which concrete year each slot means lives in
// TemplateRecord.Years, never in the row.
type TemplateRow struct {
	Category    string                  `json:"category"`
	Subcategory string                  `json:"subcategory"`
	Field       string                  `json:"field"`
	Statement   constants.StatementType `json:"statement"`

	Matched     bool   `json:"matched"`
	MatchedItem string `json:"matched_item,omitempty"`

	ConfidenceLabel constants.ConfidenceLabel `json:"confidence_label"`
	Confidence      float64                   `json:"confidence"`
	Values          []*float64                `json:"values"`
	SourcePages     []int                     `json:"source_pages,omitempty"`
}

// TemplateRecord is the pipeline's terminal artifact: every schema row, in
// schema order, regardless of how much was extracted.
type TemplateRecord struct {
	RunID         uuid.UUID     `json:"run_id"`
	GeneratedAt   time.Time     `json:"generated_at"`
	SchemaVersion string        `json:"schema_version"`
	Years         []int         `json:"years"` // concrete year per column, most-recent-first
	Rows          []TemplateRow `json:"rows"`
}

// PopulatedRows counts rows carrying at least one year value.
func (r *TemplateRecord) PopulatedRows() int {
	n := 0
	for _, row := range r.Rows {
		for _, v := range row.Values {
			if v != nil {
				n++
				break
			}
		}
	}
	return n
}
