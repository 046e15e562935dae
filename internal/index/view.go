package index

import (
	"log/slog"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/markdex/markdex/internal/document"
)

// View is an immutable, point-in-time snapshot of the index. Multiple
// views may be live concurrently: the current one plus zero or more
// draining views still pinned by in-flight queries. A query borrows a
// view for the duration of one request and never holds it longer.
type View struct {
	gen  uint64
	idx  bleve.Index
	docs map[string]*document.Document
	born time.Time
}

// Generation returns the commit generation that published this view.
func (v *View) Generation() uint64 {
	return v.gen
}

// Get returns the document for key, or nil when the view does not
// contain it.
func (v *View) Get(key string) *document.Document {
	return v.docs[key]
}

// Len returns the number of documents in the view.
func (v *View) Len() int {
	return len(v.docs)
}

// Keys returns all document keys in the view, sorted lexicographically.
func (v *View) Keys() []string {
	keys := make([]string, 0, len(v.docs))
	for k := range v.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// close releases the view's underlying index. Called only by the
// retirement policy or engine shutdown, never while the view is the
// published current one.
func (v *View) close(logger *slog.Logger) {
	if err := v.idx.Close(); err != nil {
		logger.Warn("closing retired view", "generation", v.gen, "error", err)
	}
}
