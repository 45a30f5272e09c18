package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
)

type fakeSplit struct {
	err   error
	pages [][]byte
	calls int
}

func (f *fakeSplit) split(_ context.Context, _, outDir string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	paths := make([]string, len(f.pages))
	for i, data := range f.pages {
		p := filepath.Join(outDir, fmt.Sprintf("page_%d.pdf", i+1))
		if err := os.WriteFile(p, data, 0600); err != nil {
			return nil, err
		}
		paths[i] = p
	}
	return paths, nil
}

func testService(primary, fallback splitStrategy) *Service {
	return &Service{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		primary:  primary,
		fallback: fallback,
	}
}

var fakePDF = []byte("%PDF-1.4 not a real document")

func TestRasterize_PrimarySuccess(t *testing.T) {
	primary := &fakeSplit{pages: [][]byte{[]byte("page one"), []byte("page two")}}
	fallback := &fakeSplit{pages: [][]byte{[]byte("unused")}}

	doc, err := testService(primary, fallback).Rasterize(context.Background(), fakePDF, "application/pdf")
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if doc.PageCount != 2 || len(doc.Pages) != 2 {
		t.Fatalf("page count = %d/%d, want 2", doc.PageCount, len(doc.Pages))
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times on primary success", fallback.calls)
	}
	for i, page := range doc.Pages {
		if page.Index != i+1 {
			t.Errorf("page %d index = %d", i, page.Index)
		}
		if page.MIMEType != constants.MIMETypePDF {
			t.Errorf("page %d mime = %s", i, page.MIMEType)
		}
		if !bytes.Equal(page.Artifact, primary.pages[i]) {
			t.Errorf("page %d artifact mismatch", i)
		}
	}
}

func TestRasterize_FallbackOnPrimaryFailure(t *testing.T) {
	primary := &fakeSplit{err: errors.New("malformed xref")}
	fallback := &fakeSplit{pages: [][]byte{[]byte("recovered one"), []byte("recovered two"), []byte("recovered three")}}

	doc, err := testService(primary, fallback).Rasterize(context.Background(), fakePDF, "application/pdf")
	if err != nil {
		t.Fatalf("Rasterize() error = %v, want fallback success", err)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1 each", primary.calls, fallback.calls)
	}
	if doc.PageCount != 3 {
		t.Fatalf("page count = %d, want 3", doc.PageCount)
	}
	for i, page := range doc.Pages {
		if !bytes.Equal(page.Artifact, fallback.pages[i]) {
			t.Errorf("page %d does not carry the fallback artifact", i)
		}
	}
}

func TestRasterize_BothStrategiesFail(t *testing.T) {
	primary := &fakeSplit{err: errors.New("bad stream")}
	fallback := &fakeSplit{err: errors.New("still bad")}

	_, err := testService(primary, fallback).Rasterize(context.Background(), fakePDF, "application/pdf")
	if err == nil {
		t.Fatal("Rasterize() succeeded with both strategies failing")
	}
	if code := common.ErrorCode(err); code != common.CodeDocumentUnreadable {
		t.Errorf("error code = %q, want %q", code, common.CodeDocumentUnreadable)
	}
}

func TestRasterize_EmptyInput(t *testing.T) {
	_, err := NewService(nil).Rasterize(context.Background(), nil, "application/pdf")
	if code := common.ErrorCode(err); code != common.CodeDocumentUnreadable {
		t.Fatalf("error code = %q, want %q", code, common.CodeDocumentUnreadable)
	}
}

func TestRasterize_UnknownFormat(t *testing.T) {
	_, err := NewService(nil).Rasterize(context.Background(), []byte("plain text body"), "text/plain")
	if code := common.ErrorCode(err); code != common.CodeDocumentUnreadable {
		t.Fatalf("error code = %q, want %q", code, common.CodeDocumentUnreadable)
	}
}

func tinyImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 128, A: 255})
		}
	}
	return img
}

func TestRasterize_PNGPassthrough(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, tinyImage()); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	doc, err := NewService(nil).Rasterize(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if doc.Format != constants.FormatImage || doc.PageCount != 1 {
		t.Fatalf("format=%s pages=%d, want IMAGE/1", doc.Format, doc.PageCount)
	}
	page := doc.Pages[0]
	if page.MIMEType != "image/png" {
		t.Errorf("mime = %s, want image/png", page.MIMEType)
	}
	if !bytes.Equal(page.Artifact, data) {
		t.Error("PNG artifact was re-encoded, want passthrough")
	}
	if page.HasText() {
		t.Error("image page reports a text proxy")
	}
}

func TestRasterize_BMPReencodedToPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, tinyImage()); err != nil {
		t.Fatal(err)
	}

	doc, err := NewService(nil).Rasterize(context.Background(), buf.Bytes(), "image/bmp")
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	page := doc.Pages[0]
	if page.MIMEType != "image/png" {
		t.Fatalf("mime = %s, want image/png after re-encode", page.MIMEType)
	}
	if _, err := png.Decode(bytes.NewReader(page.Artifact)); err != nil {
		t.Errorf("artifact is not valid PNG: %v", err)
	}
}

func TestRasterize_CorruptImageData(t *testing.T) {
	// TIFF magic with a truncated body must surface as unreadable, not panic.
	data := []byte{'I', 'I', 0x2A, 0x00, 0x01, 0x02}
	_, err := NewService(nil).Rasterize(context.Background(), data, "image/tiff")
	if code := common.ErrorCode(err); code != common.CodeDocumentUnreadable {
		t.Fatalf("error code = %q, want %q", code, common.CodeDocumentUnreadable)
	}
}

func TestSplitPagePaths(t *testing.T) {
	paths := splitPagePaths("/tmp/work/source.pdf", "/tmp/work/pages", 3)
	want := []string{
		filepath.Join("/tmp/work/pages", "source_1.pdf"),
		filepath.Join("/tmp/work/pages", "source_2.pdf"),
		filepath.Join("/tmp/work/pages", "source_3.pdf"),
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}
