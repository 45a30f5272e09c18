// Package raster turns uploaded document bytes into one artifact per page,
// ready for classification and extraction. PDFs are split into single-page
// PDFs; raster images become one-page documents. Each PDF page also gets a
// best-effort text proxy so the classifier can run without an inference call.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/entity"
)

// Service converts raw document bytes into an entity.Document.
type Service struct {
	logger *slog.Logger

	// primary is tried first; fallback rewrites the PDF with relaxed
	// validation before splitting, which recovers most malformed streams.
	primary  splitStrategy
	fallback splitStrategy
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		primary:  directSplit{},
		fallback: relaxedSplit{},
	}
}

// Rasterize converts document bytes into per-page artifacts. Both split
// strategies failing is fatal for the run and surfaces as DOCUMENT_UNREADABLE.
func (s *Service) Rasterize(ctx context.Context, data []byte, contentType string) (*entity.Document, error) {
	start := time.Now()
	if len(data) == 0 {
		return nil, common.NewAppError(common.CodeDocumentUnreadable, "empty document", nil)
	}

	format := constants.DetectFormat(data, contentType)
	var (
		doc *entity.Document
		err error
	)
	switch format {
	case constants.FormatPDF:
		doc, err = s.rasterizePDF(ctx, data)
	case constants.FormatImage:
		doc, err = s.rasterizeImage(data, contentType)
	default:
		return nil, common.NewAppError(common.CodeDocumentUnreadable,
			fmt.Sprintf("unsupported document format %q", contentType), nil)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("raster.ok",
		"format", doc.Format,
		"page_count", doc.PageCount,
		"source_bytes", doc.SourceSize,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func (s *Service) rasterizePDF(ctx context.Context, data []byte) (*entity.Document, error) {
	tempDir, err := os.MkdirTemp("", "statement-raster-*")
	if err != nil {
		return nil, common.WrapError(err, "create raster temp dir")
	}
	defer os.RemoveAll(tempDir)

	srcPath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(srcPath, data, 0600); err != nil {
		return nil, common.WrapError(err, "write raster source")
	}
	pagesDir := filepath.Join(tempDir, "pages")
	if err := os.Mkdir(pagesDir, 0700); err != nil {
		return nil, common.WrapError(err, "create raster pages dir")
	}

	pagePaths, err := s.primary.split(ctx, srcPath, pagesDir)
	if err != nil {
		s.logger.Warn("raster.split.fallback", "error", err)
		var fbErr error
		pagePaths, fbErr = s.fallback.split(ctx, srcPath, pagesDir)
		if fbErr != nil {
			return nil, common.NewAppError(common.CodeDocumentUnreadable,
				"unable to split document into pages", errors.Join(err, fbErr))
		}
	}

	proxies := pageTexts(srcPath, len(pagePaths), s.logger)

	doc := &entity.Document{
		Format:     constants.FormatPDF,
		SourceSize: int64(len(data)),
		PageCount:  len(pagePaths),
		Pages:      make([]*entity.Page, 0, len(pagePaths)),
	}
	for i, path := range pagePaths {
		artifact, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, common.NewAppError(common.CodeDocumentUnreadable,
				fmt.Sprintf("read split page %d", i+1), readErr)
		}
		page := &entity.Page{
			Index:    i + 1,
			Artifact: artifact,
			MIMEType: constants.MIMETypePDF,
		}
		if i < len(proxies) {
			page.TextProxy = proxies[i]
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}
