// Package eventbus is an in-memory fanout of small lifecycle events:
// finished pushes and prayer plans. Publishing never blocks; slow
// subscribers drop events.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	TypePushDone       = "push.done"
	TypePrayersPlanned = "prayers.planned"
)

type Event struct {
	Type string
	// Name qualifies Type, e.g. the push name.
	Name string
	Time time.Time
	Data any
}

// Key is the tracking key: Type, or Type:Name when Name is set.
func (e Event) Key() string {
	if e.Name == "" {
		return e.Type
	}
	return e.Type + ":" + e.Name
}

type Publisher interface {
	Publish(e Event)
}

type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func New() *Bus { return &Bus{subs: map[uint64]chan Event{}} }

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a buffered channel and its cancel func. The channel is
// closed by unsubscribe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
