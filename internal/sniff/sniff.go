// Package sniff detects a file extension from the leading bytes of content.
package sniff

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// HeadSize is how many leading bytes are enough for detection.
	HeadSize = 3072
	// Placeholder is the extension used when the real one is unknown.
	Placeholder = "bin"
)

func init() {
	mimetype.SetLimit(HeadSize)
}

// Extension returns the extension (without dot) for head, or "" when the
// content is not recognised.
func Extension(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	m := mimetype.Detect(head)
	if m.Is("application/octet-stream") {
		return ""
	}
	return strings.TrimPrefix(m.Extension(), ".")
}

// ExtensionOr is Extension falling back to Placeholder.
func ExtensionOr(head []byte) string {
	if ext := Extension(head); ext != "" {
		return ext
	}
	return Placeholder
}

// IsPlaceholder reports whether ext carries no information about the content.
func IsPlaceholder(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return ext == "" || ext == Placeholder
}
