// Package syncer orchestrates synchronization cycles: pull the latest
// revision, diff against the last-indexed one, re-index only what
// changed, commit, and rebuild the key catalog.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdex/markdex/internal/catalog"
	"github.com/markdex/markdex/internal/document"
	"github.com/markdex/markdex/internal/faults"
	"github.com/markdex/markdex/internal/revision"
	"github.com/markdex/markdex/internal/telemetry"
)

// DefaultWorkers bounds concurrent document loads within one cycle.
const DefaultWorkers = 4

// Source is the slice of the version-control collaborator the syncer
// drives.
type Source interface {
	Pull(ctx context.Context) error
	Resolve(ctx context.Context, ref string) (revision.Revision, error)
	ListAllPaths(ctx context.Context, rev revision.ID) ([]string, error)
}

// Differ resolves changed paths between two revisions.
type Differ interface {
	Diff(ctx context.Context, from, to revision.ID) ([]string, error)
}

// Loader materializes one document.
type Loader interface {
	Load(ctx context.Context, path string) (*document.Document, error)
}

// Engine is the mutation surface of the index.
type Engine interface {
	Upsert(doc *document.Document)
	Remove(key string)
	Discard()
	Commit(ctx context.Context) error
	LiveViews() int
}

// Config wires a Syncer.
type Config struct {
	Source  Source
	Differ  Differ
	Loader  Loader
	Engine  Engine
	Catalog *catalog.Catalog
	Filter  document.Filter
	// Workers bounds parallel document loads; <= 0 selects
	// DefaultWorkers.
	Workers int
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Syncer runs synchronization cycles. At most one cycle is in flight;
// re-entrant calls fail with faults.ErrConflict.
type Syncer struct {
	source  Source
	differ  Differ
	loader  Loader
	engine  Engine
	catalog *catalog.Catalog
	filter  document.Filter
	workers int
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu         sync.Mutex
	syncing    bool
	lastSynced revision.ID
}

// New creates a syncer.
func New(cfg Config) *Syncer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Syncer{
		source:  cfg.Source,
		differ:  cfg.Differ,
		loader:  cfg.Loader,
		engine:  cfg.Engine,
		catalog: cfg.Catalog,
		filter:  cfg.Filter,
		workers: workers,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "syncer"),
	}
}

// LastSynced returns the revision the index currently reflects.
func (s *Syncer) LastSynced() revision.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSynced
}

// Sync runs one synchronization cycle. A failure during any step aborts
// the cycle without committing partial state: staged changes are
// discarded and the last-synced revision stays put, so the next cycle
// retries the same diff.
func (s *Syncer) Sync(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		s.countCycle(telemetry.OutcomeConflict)
		return fmt.Errorf("sync already in flight: %w", faults.ErrConflict)
	}
	s.syncing = true
	last := s.lastSynced
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	started := time.Now()
	changed, err := s.cycle(ctx, last)
	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.SyncDuration.Observe(elapsed.Seconds())
		s.metrics.LiveViews.Set(float64(s.engine.LiveViews()))
	}
	switch {
	case err != nil:
		s.countCycle(telemetry.OutcomeError)
		s.logger.Error("sync cycle failed", "error", err, "elapsed", elapsed)
		return err
	case !changed:
		s.countCycle(telemetry.OutcomeNoChange)
	default:
		s.countCycle(telemetry.OutcomeOK)
	}
	return nil
}

// cycle performs the pull → diff → load → commit → rebuild sequence.
// It reports whether anything was published.
func (s *Syncer) cycle(ctx context.Context, last revision.ID) (bool, error) {
	if err := s.source.Pull(ctx); err != nil {
		return false, fmt.Errorf("pull: %w", err)
	}
	head, err := s.source.Resolve(ctx, "HEAD")
	if err != nil {
		return false, fmt.Errorf("resolve head: %w", err)
	}
	if head.ID == last {
		s.logger.Debug("up to date", "revision", head.ID)
		return false, nil
	}

	changed, err := s.differ.Diff(ctx, head.ID, last)
	if err != nil {
		return false, err
	}
	accepted := changed[:0:0]
	for _, path := range changed {
		if s.filter.Accepts(path) {
			accepted = append(accepted, path)
		}
	}

	missing, err := s.stageChanged(ctx, accepted)
	if err != nil {
		s.engine.Discard()
		return false, err
	}

	// Enumerate the new revision's keys before committing so a listing
	// failure cannot leave the view and catalog disagreeing.
	paths, err := s.source.ListAllPaths(ctx, head.ID)
	if err != nil {
		s.engine.Discard()
		return false, fmt.Errorf("list paths: %w", err)
	}
	keys := paths[:0:0]
	for _, path := range paths {
		if s.filter.Accepts(path) {
			keys = append(keys, path)
		}
	}

	if err := s.engine.Commit(ctx); err != nil {
		s.engine.Discard()
		return false, fmt.Errorf("commit: %w", err)
	}
	s.catalog.Rebuild(keys)

	s.mu.Lock()
	s.lastSynced = head.ID
	s.mu.Unlock()

	upserts := len(accepted) - missing
	if s.metrics != nil {
		s.metrics.DocumentsIndexedTotal.Add(float64(upserts))
		s.metrics.DocumentsRemovedTotal.Add(float64(missing))
	}
	s.logger.Info("sync cycle complete",
		"revision", head.ID,
		"upserts", upserts,
		"removals", missing,
		"catalog", len(keys))
	return true, nil
}

// stageChanged loads the changed documents with bounded parallelism and
// stages them in deterministic path order. It returns the number of
// paths that turned out to be deleted at the new revision.
func (s *Syncer) stageChanged(ctx context.Context, paths []string) (int, error) {
	docs := make([]*document.Document, len(paths))
	gone := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := s.loader.Load(gctx, path)
			if faults.IsNotFound(err) {
				// Deleted between diff and load, or present in the diff
				// only as a deletion.
				gone[i] = true
				return nil
			}
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}

	missing := 0
	for i, path := range paths {
		if gone[i] {
			s.engine.Remove(path)
			missing++
		} else {
			s.engine.Upsert(docs[i])
		}
	}
	return missing, nil
}

func (s *Syncer) countCycle(outcome string) {
	if s.metrics != nil {
		s.metrics.SyncCyclesTotal.WithLabelValues(outcome).Inc()
	}
}
