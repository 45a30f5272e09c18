package entity

import (
	"strings"

	"github.com/ledgerlens/statement-extractor/constants"
)

// Document is an ordered sequence of rasterized page artifacts. Immutable once
// the rasterizer returns it; owned by a single processing run.
type Document struct {
	Format     constants.FileFormat `json:"format"`
	SourceSize int64                `json:"source_size"`
	PageCount  int                  `json:"page_count"`
	Pages      []*Page              `json:"pages"`

	// DetectedYears holds candidate fiscal years found in the page text
	// proxies, most-recent-first. Empty for scanned documents with no text
	// layer; extraction then establishes the year set.
	DetectedYears []int `json:"detected_years,omitempty"`
}

// Page is one rasterized page artifact. The classifier assigns Label and
// LabelScore exactly once; the page is read-only afterward.
type Page struct {
	// Index is 1-based, matching split artifact naming.
	Index    int    `json:"index"`
	Artifact []byte `json:"-"`
	MIMEType string `json:"mime_type"`

	// TextProxy is the best-effort text layer used for classification so
	// that unclassifiable pages never cost an inference call. Empty for
	// scanned pages.
	TextProxy string `json:"-"`

	Label      constants.StatementType `json:"label"`
	LabelScore float64                 `json:"label_score"`
}

// HasText reports whether the page carries a usable text proxy. Pages without
// one are scanned images: the heuristic classifier cannot score them, so
// downstream stages treat them under the unscored-page policy instead of the
// below-threshold rule.
func (p *Page) HasText() bool {
	return strings.TrimSpace(p.TextProxy) != ""
}
