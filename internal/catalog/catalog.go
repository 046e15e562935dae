// Package catalog maintains the ordered, deduplicated set of all known
// document keys, independent of the full-text engine.
package catalog

import (
	"sort"
	"strings"
	"sync/atomic"
)

// snapshot is one immutable, sorted generation of the key set.
type snapshot struct {
	keys []string
}

// Catalog is the sorted set of document keys. Rebuild publishes a fresh
// immutable snapshot behind a pointer swap; readers never see a
// partially rebuilt catalog.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// New creates an empty catalog.
func New() *Catalog {
	c := &Catalog{}
	c.snap.Store(&snapshot{})
	return c
}

// Rebuild replaces the catalog content atomically with the given keys,
// sorted lexicographically and deduplicated.
func (c *Catalog) Rebuild(keys []string) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	deduped := sorted[:0]
	for i, k := range sorted {
		if i == 0 || sorted[i-1] != k {
			deduped = append(deduped, k)
		}
	}
	c.snap.Store(&snapshot{keys: deduped})
}

// Len returns the number of keys in the current snapshot.
func (c *Catalog) Len() int {
	return len(c.snap.Load().keys)
}

// List returns all keys in sorted order.
func (c *Catalog) List() []string {
	keys := c.snap.Load().keys
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// ListFrom returns up to limit keys strictly after afterKey, optionally
// filtered to those starting with prefix. An empty afterKey starts from
// the beginning.
func (c *Catalog) ListFrom(prefix, afterKey string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	keys := c.snap.Load().keys

	i := 0
	if afterKey != "" {
		i = sort.SearchStrings(keys, afterKey)
		if i < len(keys) && keys[i] == afterKey {
			i++ // afterKey is an exclusive boundary
		}
	}

	out := make([]string, 0, limit)
	for ; i < len(keys) && len(out) < limit; i++ {
		if prefix != "" {
			if !strings.HasPrefix(keys[i], prefix) {
				if keys[i] > prefix {
					break // sorted: nothing with this prefix remains
				}
				continue
			}
		}
		out = append(out, keys[i])
	}
	return out
}
