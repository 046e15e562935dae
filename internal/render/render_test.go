package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderer_Render_Paragraph(t *testing.T) {
	r := New()

	html := r.Render("hello *world*")

	assert.Contains(t, html, "<p>hello <em>world</em></p>")
}

func TestRenderer_Render_Heading(t *testing.T) {
	r := New()

	html := r.Render("# Title")

	assert.Contains(t, html, "<h1>Title</h1>")
}

func TestRenderer_Render_Table(t *testing.T) {
	r := New()

	html := r.Render("| a | b |\n|---|---|\n| 1 | 2 |")

	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>1</td>")
}

func TestRenderer_Render_MalformedInputBestEffort(t *testing.T) {
	r := New()

	html := r.Render("[unclosed](link\n\x00")

	assert.NotEmpty(t, html)
}
