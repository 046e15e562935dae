// Package index maintains the live full-text index: staged upserts,
// atomic view publication, and safe retirement of superseded views.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/markdex/markdex/internal/document"
	"github.com/markdex/markdex/internal/faults"
)

const (
	keyField     = "key"
	contentField = "content"

	// Keywords up to this many runes use exact term matching; longer
	// ones tolerate edit distance.
	exactKeywordMax = 4
	fuzziness       = 2
)

// DefaultRetireGrace is how long a superseded view stays open for
// queries that pinned it before the swap.
const DefaultRetireGrace = time.Minute

// ErrClosed is returned by mutations attempted after shutdown began.
var ErrClosed = errors.New("index: engine closed")

// indexedDoc is the shape handed to bleve. Only the searchable fields
// go in; the full Document is served from the view's snapshot map.
type indexedDoc struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// Criteria selects and orders documents for one query.
//
// Four modes: prefix-only (key order), keyword-only (relevance,
// descending), prefix+keyword (prefix is a hard filter, keyword ranks),
// and neither (match-all, key order).
type Criteria struct {
	Prefix  string
	Keyword string
	Limit   int
}

// Hit is one query result.
type Hit struct {
	Doc   *document.Document
	Score float64
}

// Engine owns the index lifecycle. One writer stages upserts and
// removals and publishes them with Commit; any number of readers pin
// the current view and query it without blocking the writer.
type Engine struct {
	logger *slog.Logger

	mu      sync.Mutex
	staged  map[string]*document.Document
	removed map[string]struct{}

	commitMu sync.Mutex
	closed   bool

	gen     atomic.Uint64
	current atomic.Pointer[View]

	retirer *retirer
}

// NewEngine creates an engine with an empty published view. grace <= 0
// selects DefaultRetireGrace.
func NewEngine(grace time.Duration, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "index")
	if grace <= 0 {
		grace = DefaultRetireGrace
	}
	idx, err := newMemIndex(nil)
	if err != nil {
		return nil, fmt.Errorf("create initial view: %w", err)
	}
	e := &Engine{
		logger:  logger,
		staged:  make(map[string]*document.Document),
		removed: make(map[string]struct{}),
		retirer: newRetirer(grace, logger),
	}
	e.current.Store(&View{gen: 0, idx: idx, docs: map[string]*document.Document{}, born: time.Now()})
	return e, nil
}

// Upsert stages doc, replacing any prior version keyed by doc.Key.
// Staged documents are invisible to queries until Commit.
func (e *Engine) Upsert(doc *document.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.removed, doc.Key)
	e.staged[doc.Key] = doc
}

// Remove stages deletion of key. Invisible to queries until Commit.
func (e *Engine) Remove(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.staged, key)
	e.removed[key] = struct{}{}
}

// Discard drops all staged changes without publishing them.
func (e *Engine) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.staged)
	clear(e.removed)
}

// StagedCount returns the number of pending upserts and removals.
func (e *Engine) StagedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.staged) + len(e.removed)
}

// Commit durably applies all staged changes and atomically publishes a
// new view reflecting them. The previous view is handed to the
// retirement policy so queries already using it can finish. A commit
// while another is in flight fails with faults.ErrConflict immediately.
// Committing with nothing staged publishes nothing and succeeds.
func (e *Engine) Commit(ctx context.Context) error {
	if !e.commitMu.TryLock() {
		return fmt.Errorf("commit already in flight: %w", faults.ErrConflict)
	}
	defer e.commitMu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.mu.Lock()
	staged := make(map[string]*document.Document, len(e.staged))
	for k, d := range e.staged {
		staged[k] = d
	}
	removed := make(map[string]struct{}, len(e.removed))
	for k := range e.removed {
		removed[k] = struct{}{}
	}
	e.mu.Unlock()

	if len(staged) == 0 && len(removed) == 0 {
		return nil
	}

	prev := e.current.Load()
	docs := make(map[string]*document.Document, len(prev.docs)+len(staged))
	for k, d := range prev.docs {
		docs[k] = d
	}
	for k, d := range staged {
		docs[k] = d
	}
	for k := range removed {
		delete(docs, k)
	}

	idx, err := newMemIndex(docs)
	if err != nil {
		// Staged changes stay put; the next cycle retries the commit.
		return fmt.Errorf("build view: %w", err)
	}

	next := &View{gen: e.gen.Add(1), idx: idx, docs: docs, born: time.Now()}
	e.current.Store(next)

	e.mu.Lock()
	clear(e.staged)
	clear(e.removed)
	e.mu.Unlock()

	e.retirer.Schedule(prev)
	e.logger.Info("committed",
		"generation", next.gen,
		"documents", len(docs),
		"upserts", len(staged),
		"removals", len(removed))
	return nil
}

// CurrentView returns the latest published view. Cheap and
// non-blocking; callers pin the returned view for at most one request.
func (e *Engine) CurrentView() *View {
	return e.current.Load()
}

// LiveViews returns the number of open views: the current one plus any
// still draining.
func (e *Engine) LiveViews() int {
	return 1 + e.retirer.Pending()
}

// Query executes criteria against a specific pinned view, never the
// live current pointer, so the caller sees a stable snapshot even if a
// commit lands concurrently.
func (e *Engine) Query(ctx context.Context, v *View, c Criteria) ([]Hit, error) {
	if c.Limit <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(buildQuery(c.Prefix, c.Keyword), c.Limit, 0, false)
	if strings.TrimSpace(c.Keyword) == "" {
		req.SortBy([]string{keyField})
	}

	res, err := v.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query view %d: %w", v.gen, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc := v.docs[h.ID]
		if doc == nil {
			return nil, fmt.Errorf("view %d: hit %q has no document record: %w", v.gen, h.ID, faults.ErrCorrupt)
		}
		hits = append(hits, Hit{Doc: doc, Score: h.Score})
	}
	return hits, nil
}

// Close shuts the engine down: it waits for an in-flight commit to
// finish, rejects new ones, forces all scheduled view releases, and
// closes the current view.
func (e *Engine) Close() error {
	e.commitMu.Lock()
	if e.closed {
		e.commitMu.Unlock()
		return nil
	}
	e.closed = true
	e.commitMu.Unlock()

	e.retirer.Close()
	e.current.Load().close(e.logger)
	return nil
}

// buildQuery maps the four criteria modes onto bleve queries. The
// keyword is lowercased to agree with the content analyzer.
func buildQuery(prefix, kw string) query.Query {
	var keyQuery, valueQuery query.Query
	if prefix != "" {
		q := bleve.NewPrefixQuery(prefix)
		q.SetField(keyField)
		keyQuery = q
	}
	if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
		if utf8.RuneCountInString(kw) <= exactKeywordMax {
			q := bleve.NewTermQuery(kw)
			q.SetField(contentField)
			valueQuery = q
		} else {
			q := bleve.NewFuzzyQuery(kw)
			q.SetField(contentField)
			q.SetFuzziness(fuzziness)
			valueQuery = q
		}
	}
	switch {
	case keyQuery != nil && valueQuery != nil:
		bq := bleve.NewBooleanQuery()
		bq.AddMust(keyQuery)
		bq.AddMust(valueQuery)
		return bq
	case keyQuery != nil:
		return keyQuery
	case valueQuery != nil:
		return valueQuery
	default:
		return bleve.NewMatchAllQuery()
	}
}

// newMemIndex builds an in-memory bleve index over the committed
// document set.
func newMemIndex(docs map[string]*document.Document) (bleve.Index, error) {
	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if len(docs) == 0 {
		return idx, nil
	}
	batch := idx.NewBatch()
	for key, doc := range docs {
		if err := batch.Index(key, indexedDoc{Key: doc.Key, Content: doc.Content}); err != nil {
			return nil, fmt.Errorf("index %s: %w", key, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("execute batch: %w", err)
	}
	return idx, nil
}

// indexMapping maps key as a single keyword term (prefix, exact match,
// sorting) and content through the standard analyzer (full-text).
func indexMapping() *mapping.IndexMappingImpl {
	keyMapping := bleve.NewTextFieldMapping()
	keyMapping.Analyzer = keyword.Name
	keyMapping.Store = false
	keyMapping.IncludeInAll = false

	contentMapping := bleve.NewTextFieldMapping()
	contentMapping.Analyzer = standard.Name
	contentMapping.Store = false
	contentMapping.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(keyField, keyMapping)
	docMapping.AddFieldMappingsAt(contentField, contentMapping)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	return im
}
