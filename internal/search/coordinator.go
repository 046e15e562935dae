// Package search implements the dual-mode, cursor-paginated search
// protocol on top of the index engine and the key catalog.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdex/markdex/internal/catalog"
	"github.com/markdex/markdex/internal/document"
	"github.com/markdex/markdex/internal/index"
)

// Page size bounds applied to every request.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Result is one page of a walk. NextCursor is empty when the walk is
// finished.
type Result struct {
	Items      []*document.Document `json:"items"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// Coordinator executes search pages. It reads from a pinned index view
// and the catalog and never writes.
type Coordinator struct {
	engine   *index.Engine
	catalog  *catalog.Catalog
	logger   *slog.Logger
	pageSize int
	maxPage  int
}

// NewCoordinator creates a search coordinator. pageSize and maxPage <= 0
// select DefaultPageSize and MaxPageSize.
func NewCoordinator(engine *index.Engine, cat *catalog.Catalog, pageSize, maxPage int, logger *slog.Logger) *Coordinator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPage <= 0 {
		maxPage = MaxPageSize
	}
	return &Coordinator{
		engine:   engine,
		catalog:  cat,
		logger:   logger.With("component", "search"),
		pageSize: pageSize,
		maxPage:  maxPage,
	}
}

// Search returns the page described by c. An empty keyword selects
// listing mode (catalog walk in key order); otherwise keyword mode
// (relevance order). Either way the page carries a cursor that resumes
// the walk without omitting or duplicating items, even if the index
// mutated between calls.
func (s *Coordinator) Search(ctx context.Context, c Cursor) (*Result, error) {
	if c.Count <= 0 {
		c.Count = s.pageSize
	}
	if c.Count > s.maxPage {
		c.Count = s.maxPage
	}
	if c.Offset < 0 {
		c.Offset = 0
	}

	view := s.engine.CurrentView()
	if c.Keyword == "" {
		return s.listPage(view, c)
	}
	return s.keywordPage(ctx, view, c)
}

// listPage pages through the catalog in key order. The boundary key is
// the real resume token: catalog order is stable under lexicographic
// sort regardless of index mutation, so offset is advisory only.
func (s *Coordinator) listPage(view *index.View, c Cursor) (*Result, error) {
	keys := s.catalog.ListFrom(c.Prefix, c.Key, c.Count)

	items := make([]*document.Document, 0, len(keys))
	for _, key := range keys {
		// A key committed to the catalog but missing from the view can
		// only appear mid-cycle; degrade to skipping it.
		if doc := view.Get(key); doc != nil {
			items = append(items, doc)
		}
	}

	res := &Result{Items: items}
	if len(keys) == c.Count {
		next := c
		next.Key = keys[len(keys)-1]
		next.Offset = c.Offset + c.Count
		res.NextCursor = next.Encode()
	}
	s.logger.Debug("listing page",
		"prefix", c.Prefix, "after", c.Key, "count", c.Count, "items", len(items))
	return res, nil
}

// keywordPage re-runs the ranked query for offset+count results on the
// pinned view, then walks the ranked window backwards collecting at
// most count items, stopping early at the boundary key from the
// previous page. Walking backwards guards against duplicate emission
// when new documents rank ahead of the boundary between calls.
func (s *Coordinator) keywordPage(ctx context.Context, view *index.View, c Cursor) (*Result, error) {
	hits, err := s.engine.Query(ctx, view, index.Criteria{
		Prefix:  c.Prefix,
		Keyword: c.Keyword,
		Limit:   c.Offset + c.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword page: %w", err)
	}

	collected := make([]*document.Document, 0, c.Count)
	floor := len(hits) - c.Count
	if floor < 0 {
		floor = 0
	}
	for i := len(hits) - 1; i >= floor; i-- {
		if hits[i].Doc.Key == c.Key {
			break
		}
		collected = append(collected, hits[i].Doc)
	}

	// Reassemble in forward ranked order.
	items := make([]*document.Document, len(collected))
	for i, doc := range collected {
		items[len(collected)-1-i] = doc
	}

	res := &Result{Items: items}
	if len(items) > 0 {
		next := c
		next.Key = items[len(items)-1].Key
		next.Offset = c.Offset + c.Count
		res.NextCursor = next.Encode()
	}
	s.logger.Debug("keyword page",
		"keyword", c.Keyword, "prefix", c.Prefix, "offset", c.Offset,
		"count", c.Count, "items", len(items))
	return res, nil
}
