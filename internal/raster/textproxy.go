package raster

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// Proxy quality gates. Identity-encoded fonts decode into garbage that would
// poison classification, so short or low-quality text is discarded and the
// page is treated as scanned.
const (
	minProxyLength  = 40
	minProxyQuality = 0.6
)

// pageTexts returns one text proxy per page, empty where no readable text
// layer exists. Extraction failures degrade to all-empty proxies rather than
// failing the run: a scanned document legitimately has no text layer.
func pageTexts(path string, pageCount int, logger *slog.Logger) []string {
	texts, err := extractPageTexts(path, pageCount)
	if err != nil {
		logger.Debug("raster.proxy.unavailable", "error", err)
		return make([]string, pageCount)
	}
	return texts
}

func extractPageTexts(path string, pageCount int) (texts []string, err error) {
	// The pdf library panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	texts = make([]string, pageCount)
	n := r.NumPage()
	if n > pageCount {
		n = pageCount
	}
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if text := pageText(page); isReadableText(text) {
			texts[i-1] = text
		}
	}
	return texts, nil
}

// pageText tries row-structured extraction first, which preserves the tabular
// layout well enough for phrase matching, then the flat text path.
func pageText(page pdf.Page) string {
	if rows, err := page.GetTextByRow(); err == nil {
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		if text := strings.Join(lines, "\n"); isReadableText(text) {
			return text
		}
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		font := page.Font(name)
		fonts[name] = &font
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func isReadableText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minProxyLength {
		return false
	}
	return textQuality(trimmed) > minProxyQuality
}

// textQuality is the share of plain ASCII letters, digits, whitespace and
// common punctuation. Strict ASCII on purpose: garbage from identity-encoded
// fonts is full of accented runes that unicode.IsLetter would accept.
func textQuality(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			readable++
		case unicode.IsSpace(r):
			readable++
		case strings.ContainsRune(`.,-/:;()'"$%&@#!?+=*`, r):
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}
