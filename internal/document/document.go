// Package document defines the Document record and the loader that
// materializes one from the source tree.
package document

import (
	"strings"
	"time"
)

// Document is one indexed text document. It is immutable once indexed
// for a given revision; re-indexing a key replaces it wholesale.
type Document struct {
	// Key is the unique slash-separated path of the document.
	Key string `json:"key"`
	// Content is the raw source text.
	Content string `json:"content"`
	// Rendered is the display (HTML) form of Content.
	Rendered string `json:"rendered"`
	// CreatedAt is the timestamp of the oldest revision that touched
	// Key, not the time the index first observed it.
	CreatedAt time.Time `json:"createdAt"`
}

// Filter restricts which paths are treated as documents.
type Filter interface {
	Accepts(path string) bool
}

// ExtensionFilter accepts paths with a fixed suffix.
type ExtensionFilter struct {
	ext string
}

// NewExtensionFilter creates a filter accepting paths ending in ext
// (e.g. ".md").
func NewExtensionFilter(ext string) ExtensionFilter {
	return ExtensionFilter{ext: ext}
}

// Accepts reports whether path carries the filter's extension.
func (f ExtensionFilter) Accepts(path string) bool {
	return strings.HasSuffix(path, f.ext)
}

var _ Filter = ExtensionFilter{}
