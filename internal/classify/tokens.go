package classify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reNumericToken = regexp.MustCompile(`^\(?-?[$£€]?\d{1,3}(,\d{3})*(\.\d+)?\)?%?$|^\(?-?[$£€]?\d+(\.\d+)?\)?%?$`)
	reYear         = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reApostrophe   = regexp.MustCompile(`['’]`)
)

// normalizeText folds the page text for matching: NFKC (full-width digits and
// ligatures from PDF text layers), lowercase, apostrophes stripped so
// "shareholders' equity" matches "shareholders equity".
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = reApostrophe.ReplaceAllString(s, "")
	return s
}

// numericDensity returns the ratio of numeric-looking tokens to total tokens.
// Financial statement pages are numerically dense; narrative pages are not.
func numericDensity(normalized string) (density float64, tokens int) {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return 0, 0
	}
	numeric := 0
	for _, f := range fields {
		f = strings.Trim(f, ".,;:")
		if f == "" {
			continue
		}
		if reNumericToken.MatchString(f) {
			numeric++
		}
	}
	return float64(numeric) / float64(len(fields)), len(fields)
}

// DetectYears pulls candidate fiscal years out of page text, deduplicated and
// most-recent-first. An empty result means the page text carries no year
// markers, which is the norm for scanned pages with no text layer.
func DetectYears(text string) []int {
	matches := reYear.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(matches))
	var years []int
	for _, m := range matches {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
