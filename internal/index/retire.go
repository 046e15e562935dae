package index

import (
	"log/slog"
	"sync"
	"time"
)

// retirer releases superseded views after a grace period long enough
// for any already-dispatched query to finish. Shutdown forces all
// outstanding releases to run immediately.
type retirer struct {
	grace  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uint64]*retiring
	closed  bool
}

type retiring struct {
	view  *View
	timer *time.Timer
}

func newRetirer(grace time.Duration, logger *slog.Logger) *retirer {
	return &retirer{
		grace:   grace,
		logger:  logger,
		pending: make(map[uint64]*retiring),
	}
}

// Schedule queues v for release after the grace period.
func (r *retirer) Schedule(v *View) {
	if v == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		v.close(r.logger)
		return
	}
	rt := &retiring{view: v}
	rt.timer = time.AfterFunc(r.grace, func() { r.release(v.gen) })
	r.pending[v.gen] = rt
	r.mu.Unlock()

	r.logger.Debug("view retiring", "generation", v.gen, "grace", r.grace)
}

func (r *retirer) release(gen uint64) {
	r.mu.Lock()
	rt, ok := r.pending[gen]
	delete(r.pending, gen)
	r.mu.Unlock()
	if !ok {
		return
	}
	rt.view.close(r.logger)
	r.logger.Debug("view released", "generation", gen)
}

// Pending returns the number of views awaiting release.
func (r *retirer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops all timers and releases every pending view now.
func (r *retirer) Close() {
	r.mu.Lock()
	r.closed = true
	drained := make([]*retiring, 0, len(r.pending))
	for gen, rt := range r.pending {
		rt.timer.Stop()
		drained = append(drained, rt)
		delete(r.pending, gen)
	}
	r.mu.Unlock()

	for _, rt := range drained {
		rt.view.close(r.logger)
	}
}
