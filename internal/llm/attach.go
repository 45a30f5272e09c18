package llm

import "encoding/base64"

// DataURL inlines a page artifact for backends that take data URLs instead
// of uploaded files.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
