package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markdex/markdex/internal/faults"
)

// Runner is what the scheduler drives once per tick.
type Runner interface {
	Sync(ctx context.Context) error
}

// Scheduler triggers synchronization on a fixed interval, plus on
// demand via SyncAsync. The first sync runs immediately on Start.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	kickCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewScheduler creates a scheduler running one sync per interval.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		kickCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the scheduling loop. Safe to call once; later calls
// are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run(ctx)
	})
}

// SyncAsync schedules one extra cycle. Requests arriving while a kick
// is already queued coalesce into it.
func (s *Scheduler) SyncAsync() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// Stop ends the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started.Load() {
		<-s.doneCh
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	s.runOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.kickCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	err := s.runner.Sync(ctx)
	switch {
	case err == nil:
	case faults.IsConflict(err):
		s.logger.Debug("sync already in flight, skipping tick")
	default:
		s.logger.Error("scheduled sync failed", "error", err)
	}
}
