package raster

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestIsReadableText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"statement text", "CONSOLIDATED BALANCE SHEET\nTotal assets 9,870 8,455\nTotal liabilities 5,120", true},
		{"empty", "", false},
		{"whitespace only", "   \n\t  ", false},
		{"too short", "Total assets", false},
		{"glyph garbage", strings.Repeat("þÃ©Ð²", 30), false},
		{"mostly garbage with a few words", "Total " + strings.Repeat("Ã©þ", 40), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isReadableText(tt.text); got != tt.want {
				t.Errorf("isReadableText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTextQuality(t *testing.T) {
	if q := textQuality("Total assets 9,870 (1,204) $5.5%"); q < 0.99 {
		t.Errorf("clean text quality = %.3f, want ~1.0", q)
	}
	if q := textQuality(strings.Repeat("þ", 100)); q != 0 {
		t.Errorf("garbage quality = %.3f, want 0", q)
	}
	if q := textQuality(""); q != 0 {
		t.Errorf("empty quality = %.3f, want 0", q)
	}
}

func TestPageTexts_UnreadableFileDegradesToEmptyProxies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	texts := pageTexts("/nonexistent/source.pdf", 4, logger)
	if len(texts) != 4 {
		t.Fatalf("len = %d, want 4", len(texts))
	}
	for i, text := range texts {
		if text != "" {
			t.Errorf("proxy %d = %q, want empty", i, text)
		}
	}
}
