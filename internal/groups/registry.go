// Package groups owns the registered group set shared by the poller and the
// content jobs.
package groups

import (
	"context"
	"errors"
	"slices"
	"sync"

	"azkarbot/internal/metrics"
	"azkarbot/internal/storage"
	logx "azkarbot/pkg/logx"
)

// ErrNotLoaded is returned by Flush before the store contents were read.
var ErrNotLoaded = errors.New("groups: store not loaded")

// Registry is the single owner of the group set. Every mutation is persisted
// before the mutating call returns; reads hand out point-in-time copies.
//
// Until a load succeeds nothing is written to the store, so a failed read
// can never overwrite the stored set. Changes made meanwhile are merged in
// by Reload.
type Registry struct {
	mu     sync.Mutex
	ids    map[int64]struct{}
	loaded bool
	// removed holds ids dropped before the load, so Reload does not bring them back.
	removed map[int64]struct{}
	dirty   bool

	store storage.GroupStore
	log   logx.Logger
}

// New returns an empty registry backed by store.
func New(store storage.GroupStore, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		ids:     make(map[int64]struct{}),
		removed: make(map[int64]struct{}),
		store:   store,
		log:     log.With(logx.String("comp", "groups")),
	}
}

// Load builds a registry from the store contents. On a load error the
// returned registry is usable but holds writes back until Reload succeeds.
func Load(ctx context.Context, store storage.GroupStore, log logx.Logger) (*Registry, error) {
	r := New(store, log)
	return r, r.Reload(ctx)
}

// Reload reads the store once. It is a no-op after the first success.
// Ids added before the load are kept, ids removed before it stay removed,
// and the merged set is persisted when anything changed meanwhile.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	// The store read happens unlocked; mutations may interleave.
	stored, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}
	for _, id := range stored {
		if _, gone := r.removed[id]; !gone {
			r.ids[id] = struct{}{}
		}
	}
	r.loaded = true
	r.removed = make(map[int64]struct{})
	metrics.Groups.Set(float64(len(r.ids)))
	r.log.Info("groups loaded", logx.Int("stored", len(stored)), logx.Int("count", len(r.ids)))

	if !r.dirty {
		return nil
	}
	r.dirty = false
	return r.persistLocked(ctx)
}

// Loaded reports whether the store contents have been read.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Snapshot returns the current ids in ascending order.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry) Contains(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Add registers id and persists. added is false when id was already present.
// On a persist error the in-memory set keeps the change and the error is returned.
func (r *Registry) Add(ctx context.Context, id int64) (added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false, nil
	}
	r.ids[id] = struct{}{}
	delete(r.removed, id)
	metrics.Groups.Set(float64(len(r.ids)))
	return true, r.persistLocked(ctx)
}

// Remove deregisters id and persists. removed is false when id was absent.
func (r *Registry) Remove(ctx context.Context, id int64) (removed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		// The id may still be in the unread store.
		if _, seen := r.removed[id]; !seen {
			r.removed[id] = struct{}{}
			r.dirty = true
		}
	}
	if _, ok := r.ids[id]; !ok {
		return false, nil
	}
	delete(r.ids, id)
	metrics.Groups.Set(float64(len(r.ids)))
	return true, r.persistLocked(ctx)
}

// Flush persists the current set. It refuses to write before a load.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return ErrNotLoaded
	}
	return r.persistLocked(ctx)
}

func (r *Registry) persistLocked(ctx context.Context) error {
	if !r.loaded {
		r.dirty = true
		r.log.Warn("groups not loaded yet; persist deferred", logx.Int("count", len(r.ids)))
		return nil
	}
	ids := r.sortedLocked()
	if err := r.store.Save(ctx, ids); err != nil {
		r.log.Error("persist groups failed", logx.Int("count", len(ids)), logx.Err(err))
		return err
	}
	return nil
}

func (r *Registry) sortedLocked() []int64 {
	out := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
