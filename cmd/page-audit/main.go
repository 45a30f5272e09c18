package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/classify"
	"github.com/ledgerlens/statement-extractor/internal/raster"
)

// page-audit rasterizes a document and prints the per-page classification
// table without making any inference calls. Debugging aid for tuning the
// classifier vocabulary and thresholds.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "page-audit <document-path>")
		os.Exit(2)
	}
	path := os.Args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read document", "path", path, "error", err)
		os.Exit(1)
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	contentType := constants.ImageMIMEType(ext)
	if constants.MapExtToFormat(ext) == constants.FormatPDF {
		contentType = constants.MIMETypePDF
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	doc, err := raster.NewService(logger).Rasterize(ctx, data, contentType)
	if err != nil {
		logger.Error("rasterize", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := classify.DefaultConfig()
	seen := make(map[int]struct{})
	var years []int

	fmt.Printf("%s: %d page(s), format %s\n\n", filepath.Base(path), doc.PageCount, doc.Format)
	fmt.Printf("%-5s %-20s %7s %8s %6s %6s\n", "PAGE", "LABEL", "SCORE", "DENSITY", "HITS", "TEXT")
	for _, page := range doc.Pages {
		res := classify.Classify(page.TextProxy, cfg)
		text := "-"
		if page.HasText() {
			text = "yes"
		}
		fmt.Printf("%-5d %-20s %7.3f %8.3f %6d %6s\n",
			page.Index, res.Label, res.Score, res.Density, res.PhraseHits, text)
		if res.Label == constants.Unclassified {
			continue
		}
		for _, y := range classify.DetectYears(page.TextProxy) {
			if _, ok := seen[y]; ok {
				continue
			}
			seen[y] = struct{}{}
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	fmt.Printf("\nDetected years (statement pages only): %v\n", years)
}
