// Package pending keeps an in-memory view of the workspace's pending changes.
//
// Every refresh issues a full status query and swaps in a freshly built Snapshot.
// Completions are tagged with a generation number so a slow query that finishes
// after a newer one is discarded instead of overwriting newer data.
package pending

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tfview/internal/logging"
	"tfview/internal/tf"

	"go.uber.org/zap"
)

// StatusSource runs the status query. *tf.Client satisfies it.
type StatusSource interface {
	Status(ctx context.Context, root string) (tf.StatusResult, error)
}

type Repository struct {
	source StatusSource
	root   string
	logger *logging.Logger

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64

	mu      sync.Mutex
	applied uint64
	subs    map[int]func(*Snapshot)
	nextSub int
}

func NewRepository(source StatusSource, root string, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Repository{
		source: source,
		root:   root,
		logger: logger,
		subs:   make(map[int]func(*Snapshot)),
	}
	r.current.Store(NewSnapshot(nil))
	return r
}

// Changes returns the current snapshot. Callers must not mutate it.
func (r *Repository) Changes() *Snapshot {
	return r.current.Load()
}

func (r *Repository) IsPathIncluded(path string) bool {
	return r.Changes().IsPathIncluded(path)
}

// Refresh queries status and replaces the pending set. A failed query clears the
// set and the error is returned.
func (r *Repository) Refresh(ctx context.Context) error {
	gen := r.generation.Add(1)
	start := time.Now()

	res, err := r.source.Status(ctx, r.root)

	var changes []PendingChange
	if err != nil {
		r.logger.Warn("status query failed, clearing pending changes",
			zap.Uint64("generation", gen), zap.Error(err))
	} else if res.HasPendingChanges {
		changes = make([]PendingChange, 0, len(res.IncludedChanges))
		for _, c := range res.IncludedChanges {
			changes = append(changes, FromIncluded(c))
		}
	}

	snap := NewSnapshot(changes)
	if r.apply(gen, snap) {
		r.logger.Debug("pending changes refreshed",
			zap.Uint64("generation", gen),
			zap.Int("changes", snap.Len()),
			zap.Duration("duration", time.Since(start)))
	} else {
		r.logger.Debug("discarding stale status result", zap.Uint64("generation", gen))
	}
	return err
}

func (r *Repository) apply(gen uint64, snap *Snapshot) bool {
	r.mu.Lock()
	if gen <= r.applied {
		r.mu.Unlock()
		return false
	}
	r.applied = gen
	r.current.Store(snap)
	subs := make([]func(*Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// Subscribe registers fn to run after every applied refresh.
func (r *Repository) Subscribe(fn func(*Snapshot)) (cancel func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}
