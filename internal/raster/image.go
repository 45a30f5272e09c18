package raster

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/entity"
)

// rasterizeImage wraps a raster image as a one-page document. TIFF and BMP
// are re-encoded as PNG since vision backends only accept JPEG and PNG. Image
// pages have no text layer, so the proxy stays empty.
func (s *Service) rasterizeImage(data []byte, contentType string) (*entity.Document, error) {
	artifact, mime := data, sniffImageMIME(data, contentType)
	switch mime {
	case "image/jpeg", "image/png":
		// Accepted as-is.
	case "image/tiff":
		converted, err := reencodePNG(data, tiff.Decode)
		if err != nil {
			return nil, common.NewAppError(common.CodeDocumentUnreadable, "decode TIFF image", err)
		}
		artifact, mime = converted, "image/png"
	case "image/bmp":
		converted, err := reencodePNG(data, bmp.Decode)
		if err != nil {
			return nil, common.NewAppError(common.CodeDocumentUnreadable, "decode BMP image", err)
		}
		artifact, mime = converted, "image/png"
	default:
		return nil, common.NewAppError(common.CodeDocumentUnreadable, "unsupported image encoding", nil)
	}

	return &entity.Document{
		Format:     constants.FormatImage,
		SourceSize: int64(len(data)),
		PageCount:  1,
		Pages: []*entity.Page{{
			Index:    1,
			Artifact: artifact,
			MIMEType: mime,
		}},
	}, nil
}

func sniffImageMIME(data []byte, declaredType string) string {
	if len(data) >= 4 {
		switch {
		case data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
			return "image/png"
		case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
			return "image/jpeg"
		case data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0x00,
			data[0] == 'M' && data[1] == 'M' && data[2] == 0x00 && data[3] == 0x2A:
			return "image/tiff"
		}
	}
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return "image/bmp"
	}
	return strings.ToLower(strings.TrimSpace(declaredType))
}

func reencodePNG(data []byte, decode func(io.Reader) (image.Image, error)) ([]byte, error) {
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
