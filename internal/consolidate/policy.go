package consolidate

// Contribution is one page's candidate for a (line item, year) slot.
type Contribution struct {
	Value      float64
	Confidence float64
	PageIndex  int
}

// Policy decides which of two competing contributions survives a merge.
// Prefer reports whether candidate should replace current. The merge loop
// never resolves a conflict on its own; every collision goes through here.
type Policy interface {
	Name() string
	Prefer(current, candidate Contribution) bool
}

// confidenceThenLaterPage prefers the higher extraction confidence and breaks
// ties toward the later page, where summary and total rows tend to live.
type confidenceThenLaterPage struct{}

// DefaultPolicy returns the standard conflict policy.
func DefaultPolicy() Policy { return confidenceThenLaterPage{} }

func (confidenceThenLaterPage) Name() string { return "confidence-then-later-page" }

func (confidenceThenLaterPage) Prefer(current, candidate Contribution) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	return candidate.PageIndex > current.PageIndex
}
