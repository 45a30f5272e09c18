package entity

import (
	"github.com/ledgerlens/statement-extractor/constants"
)

// LineItem is one extracted statement line: a named figure with values per
// fiscal year and the model's confidence for the whole line.
type LineItem struct {
	Category   string          `json:"category,omitempty"`
	Name       string          `json:"name"`
	Values     map[int]float64 `json:"values"` // year -> reported value
	Confidence float64         `json:"confidence"`
}

// ExtractionRecord is the per-page result of one successful inference call.
// Never mutated after creation; consolidation folds many of these into a new
// entity instead of editing in place.
type ExtractionRecord struct {
	PageIndex int                     `json:"page_index"`
	Label     constants.StatementType `json:"label"`
	Years     []int                   `json:"years"`
	Items     []LineItem              `json:"items"`
}
