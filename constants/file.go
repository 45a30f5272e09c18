package constants

import "strings"

// FileFormat is the coarse document format the rasterizer dispatches on.
type FileFormat string

const (
	FormatPDF     FileFormat = "PDF"
	FormatImage   FileFormat = "IMAGE"
	FormatUnknown FileFormat = "UNKNOWN"
)

// MIMETypePDF is the artifact MIME type for split PDF pages.
const MIMETypePDF = "application/pdf"

// MaxArtifactMB caps the per-page artifact size sent to a vision backend.
const MaxArtifactMB = 20

// AllowedExtensions holds the file extensions accepted for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its coarse format.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return FormatPDF
	case "jpg", "jpeg", "png", "tif", "tiff", "bmp":
		return FormatImage
	default:
		return FormatUnknown
	}
}

// ImageMIMEType returns the MIME type for a supported raster image extension.
func ImageMIMEType(ext string) string {
	switch NormalizeExt(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "tif", "tiff":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// DetectFormat sniffs magic bytes, falling back to the declared content type
// when the leading bytes are inconclusive. Magic bytes win over the declared
// type: mislabeled uploads are common.
func DetectFormat(data []byte, declaredType string) FileFormat {
	if len(data) >= 4 {
		// PDF magic: %PDF
		if data[0] == '%' && data[1] == 'P' && data[2] == 'D' && data[3] == 'F' {
			return FormatPDF
		}
		// PNG magic: \x89PNG
		if data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' {
			return FormatImage
		}
		// JPEG magic: \xFF\xD8\xFF
		if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
			return FormatImage
		}
		// TIFF magic: II*\x00 (little endian) or MM\x00* (big endian)
		if (data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0x00) ||
			(data[0] == 'M' && data[1] == 'M' && data[2] == 0x00 && data[3] == 0x2A) {
			return FormatImage
		}
	}
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return FormatImage
	}

	switch strings.ToLower(strings.TrimSpace(declaredType)) {
	case "application/pdf", "pdf":
		return FormatPDF
	case "image/png", "image/jpeg", "image/jpg", "image/tiff", "image/bmp":
		return FormatImage
	}
	return FormatUnknown
}
