package eventbus

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Tracker records when each event key was last seen.
type Tracker struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewTracker() *Tracker { return &Tracker{last: map[string]time.Time{}} }

// Run consumes events until ctx is done or the channel closes.
func (t *Tracker) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			t.Observe(e)
		}
	}
}

func (t *Tracker) Observe(e Event) {
	t.mu.Lock()
	t.last[e.Key()] = e.Time
	t.mu.Unlock()
}

// Last returns a copy of the key -> time table.
func (t *Tracker) Last() map[string]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.last)
}
