package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdex/markdex/internal/catalog"
	"github.com/markdex/markdex/internal/document"
	"github.com/markdex/markdex/internal/index"
)

type fixture struct {
	engine  *index.Engine
	catalog *catalog.Catalog
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := index.NewEngine(time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	cat := catalog.New()
	return &fixture{
		engine:  engine,
		catalog: cat,
		coord:   NewCoordinator(engine, cat, 0, 0, slog.New(slog.DiscardHandler)),
	}
}

// commit publishes the given documents and rebuilds the catalog, the
// way one sync cycle does.
func (f *fixture) commit(t *testing.T, docs ...*document.Document) {
	t.Helper()
	for _, d := range docs {
		f.engine.Upsert(d)
	}
	require.NoError(t, f.engine.Commit(context.Background()))
	f.catalog.Rebuild(f.engine.CurrentView().Keys())
}

func mkdoc(key, content string) *document.Document {
	return &document.Document{
		Key:       key,
		Content:   content,
		Rendered:  "<p>" + content + "</p>",
		CreatedAt: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func itemKeys(items []*document.Document) []string {
	keys := make([]string, len(items))
	for i, d := range items {
		keys[i] = d.Key
	}
	return keys
}

func TestCoordinator_Listing_SpecExamplePage(t *testing.T) {
	f := newFixture(t)
	f.commit(t, mkdoc("a/1.md", "one"), mkdoc("a/2.md", "two"), mkdoc("b/1.md", "three"))

	res, err := f.coord.Search(context.Background(), Cursor{Count: 2})

	require.NoError(t, err)
	assert.Equal(t, []string{"a/1.md", "a/2.md"}, itemKeys(res.Items))
	require.NotEmpty(t, res.NextCursor)
	next, err := DecodeCursor(res.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "a/2.md", next.Key)
	assert.Equal(t, 2, next.Offset)
}

func TestCoordinator_Listing_WalkYieldsEveryKeyExactlyOnce(t *testing.T) {
	f := newFixture(t)
	var docs []*document.Document
	var all []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("docs/%02d.md", i)
		all = append(all, key)
		docs = append(docs, mkdoc(key, "body"))
	}
	f.commit(t, docs...)

	var walked []string
	var pageSizes []int
	cursor := Cursor{Count: 3}
	for {
		res, err := f.coord.Search(context.Background(), cursor)
		require.NoError(t, err)
		if len(res.Items) == 0 {
			break
		}
		pageSizes = append(pageSizes, len(res.Items))
		walked = append(walked, itemKeys(res.Items)...)
		if res.NextCursor == "" {
			break
		}
		cursor, err = DecodeCursor(res.NextCursor)
		require.NoError(t, err)
	}

	assert.Equal(t, []int{3, 3, 3, 1}, pageSizes)
	assert.Equal(t, all, walked)
}

func TestCoordinator_Listing_ShortPageHasNoCursor(t *testing.T) {
	f := newFixture(t)
	f.commit(t, mkdoc("a/1.md", "one"), mkdoc("a/2.md", "two"))

	res, err := f.coord.Search(context.Background(), Cursor{Count: 5})

	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Empty(t, res.NextCursor)
}

func TestCoordinator_Listing_PrefixRestrictsWalk(t *testing.T) {
	f := newFixture(t)
	f.commit(t, mkdoc("a/1.md", "one"), mkdoc("a/2.md", "two"), mkdoc("b/1.md", "three"))

	res, err := f.coord.Search(context.Background(), Cursor{Prefix: "a/", Count: 10})

	require.NoError(t, err)
	assert.Equal(t, []string{"a/1.md", "a/2.md"}, itemKeys(res.Items))
	assert.Empty(t, res.NextCursor)
}

func TestCoordinator_Keyword_WalkCoversAllMatchesWithoutDuplicates(t *testing.T) {
	f := newFixture(t)
	var docs []*document.Document
	for i := 0; i < 5; i++ {
		docs = append(docs, mkdoc(fmt.Sprintf("n/%d.md", i), "shared topic number "+strings.Repeat("x", i)))
	}
	docs = append(docs, mkdoc("other.md", "nothing relevant here"))
	f.commit(t, docs...)

	seen := map[string]int{}
	var pageSizes []int
	cursor := Cursor{Keyword: "topic", Count: 2}
	for {
		res, err := f.coord.Search(context.Background(), cursor)
		require.NoError(t, err)
		if len(res.Items) == 0 {
			assert.Empty(t, res.NextCursor, "empty page must not carry a cursor")
			break
		}
		pageSizes = append(pageSizes, len(res.Items))
		for _, k := range itemKeys(res.Items) {
			seen[k]++
		}
		require.NotEmpty(t, res.NextCursor)
		cursor, err = DecodeCursor(res.NextCursor)
		require.NoError(t, err)
	}

	assert.Equal(t, []int{2, 2, 1}, pageSizes)
	assert.Len(t, seen, 5)
	for key, n := range seen {
		assert.Equal(t, 1, n, "key %s emitted more than once", key)
		assert.NotEqual(t, "other.md", key)
	}
}

func TestCoordinator_Keyword_BoundaryKeyNeverReappearsAfterInsert(t *testing.T) {
	f := newFixture(t)
	f.commit(t,
		mkdoc("a.md", "ranking test subject"),
		mkdoc("b.md", "ranking test subject again"),
		mkdoc("c.md", "ranking test subject once more"),
	)

	// Given the first page of a keyword walk
	page1, err := f.coord.Search(context.Background(), Cursor{Keyword: "ranking", Count: 2})
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	boundary := page1.Items[len(page1.Items)-1].Key

	// When a new document that ranks ahead of the boundary is committed
	// between the two calls
	f.commit(t, mkdoc("z.md", strings.Repeat("ranking ", 20)))

	cursor, err := DecodeCursor(page1.NextCursor)
	require.NoError(t, err)
	page2, err := f.coord.Search(context.Background(), cursor)
	require.NoError(t, err)

	// Then the already-returned boundary key does not reappear
	assert.NotContains(t, itemKeys(page2.Items), boundary)
}

func TestCoordinator_Keyword_NoMatchesEndsWalk(t *testing.T) {
	f := newFixture(t)
	f.commit(t, mkdoc("a/1.md", "plain words"))

	res, err := f.coord.Search(context.Background(), Cursor{Keyword: "absent", Count: 5})

	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.NextCursor)
}

func TestCoordinator_Search_AppliesPageSizeBounds(t *testing.T) {
	f := newFixture(t)
	var docs []*document.Document
	for i := 0; i < DefaultPageSize+5; i++ {
		docs = append(docs, mkdoc(fmt.Sprintf("d/%03d.md", i), "body"))
	}
	f.commit(t, docs...)

	// Zero count falls back to the default page size
	res, err := f.coord.Search(context.Background(), Cursor{})
	require.NoError(t, err)
	assert.Len(t, res.Items, DefaultPageSize)

	// Oversized count is clamped
	res, err = f.coord.Search(context.Background(), Cursor{Count: MaxPageSize * 10})
	require.NoError(t, err)
	assert.Len(t, res.Items, DefaultPageSize+5)
}
