// Package revision resolves which document paths changed between two
// revisions of the source tree, and when a path first entered history.
package revision

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/markdex/markdex/internal/faults"
)

// ID identifies an immutable point-in-time state of the source tree.
type ID string

// Revision pairs a revision identifier with its commit timestamp.
type Revision struct {
	ID   ID
	Time time.Time
}

// History is the slice of the version-control collaborator the resolver
// consumes.
type History interface {
	// DiffPaths returns the paths whose content differs between the two
	// revisions. An empty to means "no upper bound": every path reachable
	// from from's ancestry is a candidate.
	DiffPaths(ctx context.Context, from, to ID) ([]string, error)

	// HistoryTouching returns the revisions that touched path,
	// oldest-first.
	HistoryTouching(ctx context.Context, path string) ([]Revision, error)
}

// DefaultCreatedCacheSize is the default capacity of the creation-time
// cache.
const DefaultCreatedCacheSize = 4096

// Resolver answers diff and creation-time questions against the
// version-control collaborator. Creation times are immutable per path,
// so they are memoized in an LRU cache.
type Resolver struct {
	history History
	created *lru.Cache[string, time.Time]
	logger  *slog.Logger
}

// NewResolver creates a resolver over the given history. cacheSize <= 0
// selects DefaultCreatedCacheSize.
func NewResolver(history History, cacheSize int, logger *slog.Logger) *Resolver {
	if cacheSize <= 0 {
		cacheSize = DefaultCreatedCacheSize
	}
	cache, _ := lru.New[string, time.Time](cacheSize)
	return &Resolver{
		history: history,
		created: cache,
		logger:  logger.With("component", "revision"),
	}
}

// Diff returns the sorted set of paths whose content differs between the
// two revisions. Identical revisions produce an empty diff.
func (r *Resolver) Diff(ctx context.Context, from, to ID) ([]string, error) {
	if from == to {
		return nil, nil
	}
	paths, err := r.history.DiffPaths(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", to, from, err)
	}
	sort.Strings(paths)
	r.logger.Debug("diff resolved", "from", from, "to", to, "paths", len(paths))
	return paths, nil
}

// CreationTime returns the timestamp of the oldest revision that touched
// path. It fails with faults.ErrNotFound when no revision ever did.
func (r *Resolver) CreationTime(ctx context.Context, path string) (time.Time, error) {
	if t, ok := r.created.Get(path); ok {
		return t, nil
	}
	revs, err := r.history.HistoryTouching(ctx, path)
	if err != nil {
		return time.Time{}, fmt.Errorf("history of %s: %w", path, err)
	}
	if len(revs) == 0 {
		return time.Time{}, fmt.Errorf("creation time of %s: %w", path, faults.ErrNotFound)
	}
	// The oldest timestamp wins even if the collaborator returned the
	// revisions out of order.
	oldest := revs[0].Time
	for _, rev := range revs[1:] {
		if rev.Time.Before(oldest) {
			oldest = rev.Time
		}
	}
	r.created.Add(path, oldest)
	return oldest, nil
}
