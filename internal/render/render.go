// Package render turns raw markdown into display HTML.
package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown text to HTML. Rendering is pure and
// best-effort: malformed input renders to whatever the parser makes of
// it, never an error.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a markdown renderer with GFM table support.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Render converts text to HTML. If conversion fails the raw text is
// returned unchanged.
func (r *Renderer) Render(text string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return buf.String()
}
