package entity

import (
	"github.com/ledgerlens/statement-extractor/constants"
)

// YearValue is one merged figure for a (line item, year) pair, tagged with the
// page that won the conflict resolution for it.
type YearValue struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	PageIndex  int     `json:"page_index"`
}

// ConsolidatedItem is a line-item identity folded across every page sharing
// the statement label.
type ConsolidatedItem struct {
	// Key is the normalized line-item identity used for merging and
	// template matching. Name keeps the highest-confidence display form.
	Key        string            `json:"key"`
	Name       string            `json:"name"`
	Category   string            `json:"category,omitempty"`
	Values     map[int]YearValue `json:"values"`
	Confidence float64           `json:"confidence"`
	Pages      []int             `json:"pages"`
}

// ConsolidatedStatement is the multi-year merge of every extraction record for
// one statement label. Mutated only during the single consolidation pass.
type ConsolidatedStatement struct {
	Label constants.StatementType      `json:"label"`
	Items map[string]*ConsolidatedItem `json:"items"` // keyed by normalized identity
	Years []int                        `json:"years"` // union, most-recent-first
	Pages []int                        `json:"pages"` // contributing pages, ascending
}
