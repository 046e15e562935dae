// Package service assembles the markdex components into one facade
// the HTTP server and the CLI share.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdex/markdex/internal/catalog"
	"github.com/markdex/markdex/internal/config"
	"github.com/markdex/markdex/internal/document"
	"github.com/markdex/markdex/internal/faults"
	"github.com/markdex/markdex/internal/gitsource"
	"github.com/markdex/markdex/internal/index"
	"github.com/markdex/markdex/internal/render"
	"github.com/markdex/markdex/internal/revision"
	"github.com/markdex/markdex/internal/search"
	"github.com/markdex/markdex/internal/syncer"
	"github.com/markdex/markdex/internal/telemetry"
)

// Service owns the component graph: git source, revision resolver,
// document loader, index engine, key catalog, search coordinator, and
// the sync scheduler.
type Service struct {
	cfg       *config.Config
	source    *gitsource.Source
	resolver  *revision.Resolver
	engine    *index.Engine
	catalog   *catalog.Catalog
	coord     *search.Coordinator
	syncer    *syncer.Syncer
	scheduler *syncer.Scheduler
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// New opens the source repository and wires the component graph. It
// does not sync; call Sync or Start afterwards.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*Service, error) {
	source, err := gitsource.Open(ctx, gitsource.Config{
		URL:      cfg.Repo.URL,
		Branch:   cfg.Repo.Branch,
		Dir:      cfg.Repo.DataDir,
		Username: cfg.Repo.Username,
		Token:    cfg.Repo.Token,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open source repository: %w", err)
	}

	resolver := revision.NewResolver(source, cfg.Index.CreatedCacheSize, logger)
	loader := document.NewLoader(source, render.New(), resolver, logger)

	engine, err := index.NewEngine(cfg.Index.RetireGrace.Std(), logger)
	if err != nil {
		return nil, fmt.Errorf("create index engine: %w", err)
	}

	cat := catalog.New()
	coord := search.NewCoordinator(engine, cat, cfg.Search.DefaultPageSize, cfg.Search.MaxPageSize, logger)

	sync := syncer.New(syncer.Config{
		Source:  source,
		Differ:  resolver,
		Loader:  loader,
		Engine:  engine,
		Catalog: cat,
		Filter:  document.NewExtensionFilter(".md"),
		Workers: cfg.Index.Workers,
		Metrics: metrics,
		Logger:  logger,
	})

	return &Service{
		cfg:       cfg,
		source:    source,
		resolver:  resolver,
		engine:    engine,
		catalog:   cat,
		coord:     coord,
		syncer:    sync,
		scheduler: syncer.NewScheduler(sync, cfg.Repo.SyncInterval.Std(), logger),
		metrics:   metrics,
		logger:    logger.With("component", "service"),
	}, nil
}

// Start launches the background sync loop. The first cycle runs
// immediately.
func (s *Service) Start(ctx context.Context) {
	s.scheduler.Start(ctx)
}

// Sync runs one synchronization cycle and waits for it.
func (s *Service) Sync(ctx context.Context) error {
	return s.syncer.Sync(ctx)
}

// SyncAsync requests an extra cycle from the background loop without
// waiting. Requests arriving while a cycle runs coalesce.
func (s *Service) SyncAsync() {
	s.scheduler.SyncAsync()
}

// Search executes one page of the cursor protocol and records search
// telemetry.
func (s *Service) Search(ctx context.Context, c search.Cursor) (*search.Result, error) {
	mode := telemetry.ModeListing
	if c.Keyword != "" {
		mode = telemetry.ModeKeyword
	}
	start := time.Now()
	result, err := s.coord.Search(ctx, c)
	if s.metrics != nil {
		s.metrics.SearchRequestsTotal.WithLabelValues(mode).Inc()
		s.metrics.SearchLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
	return result, err
}

// Get returns the document stored under key.
func (s *Service) Get(ctx context.Context, key string) (*document.Document, error) {
	doc := s.engine.CurrentView().Get(key)
	if doc == nil {
		return nil, fmt.Errorf("get %q: %w", key, faults.ErrNotFound)
	}
	return doc, nil
}

// GetMany returns the documents for keys, in input order. Keys with no
// document are skipped.
func (s *Service) GetMany(ctx context.Context, keys []string) []*document.Document {
	view := s.engine.CurrentView()
	docs := make([]*document.Document, 0, len(keys))
	for _, key := range keys {
		if doc := view.Get(key); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

// ListKeys returns up to limit keys with the prefix, strictly after
// afterKey in lexicographic order.
func (s *Service) ListKeys(prefix, afterKey string, limit int) []string {
	if limit <= 0 {
		limit = s.cfg.Search.DefaultPageSize
	}
	if limit > s.cfg.Search.MaxPageSize {
		limit = s.cfg.Search.MaxPageSize
	}
	return s.catalog.ListFrom(prefix, afterKey, limit)
}

// ViewGeneration reports the generation of the current index view.
// Zero means no commit has been published yet.
func (s *Service) ViewGeneration() uint64 {
	return s.engine.CurrentView().Generation()
}

// LastSynced reports the revision the index reflects.
func (s *Service) LastSynced() revision.ID {
	return s.syncer.LastSynced()
}

// Close stops the scheduler and releases the index. Draining views are
// closed immediately.
func (s *Service) Close() error {
	s.scheduler.Stop()
	return s.engine.Close()
}
