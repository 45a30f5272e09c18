package raster

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// splitStrategy produces one single-page PDF per page of srcPath inside
// outDir and returns the page file paths in page order.
type splitStrategy interface {
	split(ctx context.Context, srcPath, outDir string) ([]string, error)
}

// directSplit splits the source as-is. Fast path for well-formed PDFs.
type directSplit struct{}

func (directSplit) split(_ context.Context, srcPath, outDir string) ([]string, error) {
	count, err := api.PageCountFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if count == 0 {
		return nil, errors.New("document has no pages")
	}
	if err := api.SplitFile(srcPath, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	return splitPagePaths(srcPath, outDir, count), nil
}

// relaxedSplit rewrites the PDF with relaxed validation before splitting.
// Recovers streams that fail strict parsing (truncated xref, vendor quirks).
type relaxedSplit struct{}

func (relaxedSplit) split(_ context.Context, srcPath, outDir string) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	rewritten := filepath.Join(filepath.Dir(srcPath), "relaxed.pdf")
	if err := api.OptimizeFile(srcPath, rewritten, conf); err != nil {
		return nil, fmt.Errorf("relaxed rewrite: %w", err)
	}
	count, err := api.PageCountFile(rewritten)
	if err != nil {
		return nil, fmt.Errorf("page count after rewrite: %w", err)
	}
	if count == 0 {
		return nil, errors.New("document has no pages after rewrite")
	}
	if err := api.SplitFile(rewritten, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split after rewrite: %w", err)
	}
	return splitPagePaths(rewritten, outDir, count), nil
}

// splitPagePaths lists the artifacts api.SplitFile writes: <base>_<n>.pdf,
// 1-based, in outDir.
func splitPagePaths(srcPath, outDir string, count int) []string {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	paths := make([]string, count)
	for i := range paths {
		paths[i] = filepath.Join(outDir, fmt.Sprintf("%s_%d.pdf", base, i+1))
	}
	return paths
}
