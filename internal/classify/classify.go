// Package classify assigns statement-type labels to pages using lightweight
// text heuristics, keeping unclassifiable pages away from the inference
// backend entirely.
package classify

import (
	"strings"

	"github.com/ledgerlens/statement-extractor/constants"
)

// Config holds the scoring knobs. Threshold gates classification; Epsilon is
// the near-tie window; TieBreak is the documented label preference order on
// ties, configurable because it is asserted policy rather than verified fact.
type Config struct {
	Threshold     float64
	Epsilon       float64
	PhraseWeight  float64
	DensityWeight float64
	TieBreak      []constants.StatementType
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.35,
		Epsilon:       0.05,
		PhraseWeight:  0.7,
		DensityWeight: 0.3,
		TieBreak: []constants.StatementType{
			constants.BalanceSheet,
			constants.IncomeStatement,
			constants.CashFlow,
			constants.Equity,
		},
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.PhraseWeight <= 0 && c.DensityWeight <= 0 {
		c.PhraseWeight = d.PhraseWeight
		c.DensityWeight = d.DensityWeight
	}
	if len(c.TieBreak) == 0 {
		c.TieBreak = d.TieBreak
	}
	return c
}

// Result is the tagged classification outcome for one page.
type Result struct {
	Label      constants.StatementType
	Score      float64
	Density    float64
	PhraseHits int
}

// Classify scores one page's text proxy against every statement label and
// returns the winner, or Unclassified when no label clears the threshold.
// Pure function over its inputs: safe to call from many goroutines at once.
//
// Per-label score = PhraseWeight*phraseScore + DensityWeight*density, where
// phraseScore saturates with vocabulary hits and density is the page's
// numeric-token ratio. An empty proxy scores zero on every label, so scanned
// pages without a text layer stay Unclassified and cost no inference call.
func Classify(text string, cfg Config) Result {
	cfg = cfg.normalized()

	normalized := normalizeText(text)
	density, tokens := numericDensity(normalized)
	if tokens == 0 {
		return Result{Label: constants.Unclassified}
	}

	type scored struct {
		label constants.StatementType
		score float64
		hits  int
	}
	scores := make([]scored, 0, len(cfg.TieBreak))
	for _, label := range cfg.TieBreak {
		hits := phraseHits(normalized, vocabulary[label])
		score := cfg.PhraseWeight*phraseScore(hits) + cfg.DensityWeight*density
		scores = append(scores, scored{label: label, score: score, hits: hits})
	}

	// Winner selection: best combined score; labels within Epsilon of the
	// best are near-ties broken by phrase hit count, then by the TieBreak
	// order itself (density is a page property here so it cannot separate
	// two labels on the same page).
	best := scores[0]
	for _, s := range scores[1:] {
		switch {
		case s.score > best.score+cfg.Epsilon:
			best = s
		case s.score > best.score-cfg.Epsilon && s.hits > best.hits:
			best = s
		}
	}

	if best.score < cfg.Threshold || best.hits == 0 {
		return Result{Label: constants.Unclassified, Score: best.score, Density: density}
	}
	return Result{Label: best.label, Score: best.score, Density: density, PhraseHits: best.hits}
}

// phraseHits counts vocabulary phrases present in the normalized text.
func phraseHits(normalized string, phrases []string) int {
	hits := 0
	for _, p := range phrases {
		if strings.Contains(normalized, p) {
			hits++
		}
	}
	return hits
}

// phraseScore saturates at 1.0 after three distinct phrase hits. One hit is
// suggestive, two are strong, three or more are conclusive.
func phraseScore(hits int) float64 {
	score := 0.4 * float64(hits)
	if score > 1.0 {
		return 1.0
	}
	return score
}
