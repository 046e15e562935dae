package catalog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_Rebuild_SortsAndDedupes(t *testing.T) {
	c := New()

	c.Rebuild([]string{"b/1.md", "a/2.md", "a/1.md", "a/2.md"})

	assert.Equal(t, []string{"a/1.md", "a/2.md", "b/1.md"}, c.List())
	assert.Equal(t, 3, c.Len())
}

func TestCatalog_ListFrom_PrefixFilter(t *testing.T) {
	c := New()
	c.Rebuild([]string{"a/1.md", "a/2.md", "b/1.md"})

	keys := c.ListFrom("a/", "", 10)

	assert.Equal(t, []string{"a/1.md", "a/2.md"}, keys)
}

func TestCatalog_ListFrom_AfterKeyIsExclusive(t *testing.T) {
	c := New()
	c.Rebuild([]string{"a/1.md", "a/2.md", "a/3.md", "b/1.md"})

	keys := c.ListFrom("", "a/2.md", 10)

	assert.Equal(t, []string{"a/3.md", "b/1.md"}, keys)
}

func TestCatalog_ListFrom_AfterKeyAbsentFromCatalog(t *testing.T) {
	// A boundary key that was deleted between pages still works as an
	// exclusive marker.
	c := New()
	c.Rebuild([]string{"a/1.md", "a/3.md"})

	keys := c.ListFrom("", "a/2.md", 10)

	assert.Equal(t, []string{"a/3.md"}, keys)
}

func TestCatalog_ListFrom_RespectsLimit(t *testing.T) {
	c := New()
	c.Rebuild([]string{"a/1.md", "a/2.md", "a/3.md"})

	assert.Equal(t, []string{"a/1.md", "a/2.md"}, c.ListFrom("", "", 2))
	assert.Empty(t, c.ListFrom("", "", 0))
}

func TestCatalog_ListFrom_StopsPastPrefixRange(t *testing.T) {
	c := New()
	c.Rebuild([]string{"a/1.md", "b/1.md", "c/1.md"})

	keys := c.ListFrom("b/", "", 10)

	assert.Equal(t, []string{"b/1.md"}, keys)
}

func TestCatalog_Rebuild_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	c := New()
	gens := [][]string{
		{"a/1.md", "a/2.md"},
		{"b/1.md", "b/2.md", "b/3.md"},
	}
	c.Rebuild(gens[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				c.Rebuild(gens[i%2])
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		got := c.List()
		// A reader must see one generation in full, never a mix.
		if len(got) != 2 && len(got) != 3 {
			t.Fatalf("torn snapshot: %v", got)
		}
	}
	close(stop)
	wg.Wait()
}

func TestCatalog_EmptyCatalog(t *testing.T) {
	c := New()

	assert.Empty(t, c.List())
	assert.Empty(t, c.ListFrom("a/", "", 5))
	assert.Equal(t, 0, c.Len())
}

func TestCatalog_ListFrom_PagedWalkCoversAllKeysOnce(t *testing.T) {
	c := New()
	var all []string
	for i := 0; i < 10; i++ {
		all = append(all, fmt.Sprintf("docs/%02d.md", i))
	}
	c.Rebuild(all)

	var walked []string
	after := ""
	pages := 0
	for {
		page := c.ListFrom("", after, 3)
		if len(page) == 0 {
			break
		}
		pages++
		walked = append(walked, page...)
		after = page[len(page)-1]
		if len(page) < 3 {
			break
		}
	}

	assert.Equal(t, 4, pages)
	assert.Equal(t, all, walked)
}
