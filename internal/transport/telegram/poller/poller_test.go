package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

type pollResult struct {
	ups []kit.Update
	err error
}

// scriptedSource replays results in order and records the offsets requested.
type scriptedSource struct {
	mu      sync.Mutex
	results []pollResult
	offsets []int64
	onEmpty func()
}

func (s *scriptedSource) GetUpdates(_ context.Context, offset int64, _ int, _ time.Duration) ([]kit.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if len(s.results) == 0 {
		if s.onEmpty != nil {
			s.onEmpty()
		}
		return nil, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.ups, r.err
}

func msg(id int64) kit.Update {
	return kit.Update{ID: id, Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 1}}
}

func newTestPoller(src kit.UpdateSource, h Handler) (*Poller, *[]time.Duration) {
	p := New(Config{}, src, h, logx.Nop())
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		streak int
		want   time.Duration
	}{
		{1, time.Second},
		{2, time.Second},
		{4, time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := BackoffDelay(tc.streak, time.Second, time.Minute, 5); got != tc.want {
			t.Fatalf("BackoffDelay(%d) = %v, want %v", tc.streak, got, tc.want)
		}
	}
}

func TestCursorAdvancesPerEvent(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{results: []pollResult{{ups: []kit.Update{msg(10), msg(11), msg(12)}}}}
	var p *Poller
	var seen []int64
	p, _ = newTestPoller(src, HandlerFunc(func(_ context.Context, up kit.Update) error {
		seen = append(seen, up.ID)
		if up.ID == 10 && p.Cursor() != 0 {
			t.Errorf("cursor moved before first event finished: %d", p.Cursor())
		}
		if up.ID == 11 {
			if got := p.Cursor(); got != 11 {
				t.Errorf("cursor during event 11 = %d, want 11", got)
			}
			// Simulated crash: nothing after event 11 is handled.
			p.Stop()
		}
		return nil
	}))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 2 || seen[0] != 10 || seen[1] != 11 {
		t.Fatalf("seen = %v, want [10 11]", seen)
	}
	// Event 12 was never dispatched, so the next poll starts there.
	if got := p.Cursor(); got != 12 {
		t.Fatalf("cursor = %d, want 12", got)
	}
}

func TestStreakResetsOnSuccess(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial tcp: connection refused")
	src := &scriptedSource{results: []pollResult{
		{err: boom}, {err: boom}, {err: boom}, {err: boom}, {err: boom}, {err: boom},
		{ups: []kit.Update{msg(1)}},
		{err: boom},
	}}
	var p *Poller
	src.onEmpty = func() { p.Stop() }
	p, slept := newTestPoller(src, HandlerFunc(func(context.Context, kit.Update) error { return nil }))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []time.Duration{
		time.Second, time.Second, time.Second, time.Second,
		32 * time.Second, 60 * time.Second,
		time.Second, // politeness delay after success
		time.Second, // streak restarted at 1
	}
	if len(*slept) != len(want) {
		t.Fatalf("slept = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v (all: %v)", i, (*slept)[i], want[i], *slept)
		}
	}
}

func TestConflictWaitsFixedTenSeconds(t *testing.T) {
	t.Parallel()

	conflict := &kit.APIError{Method: "getUpdates", Status: 409, Description: "Conflict"}
	boom := errors.New("dial tcp: connection refused")
	src := &scriptedSource{results: []pollResult{
		{err: conflict},
		{err: boom}, {err: boom}, {err: boom}, {err: boom},
		{err: conflict},
		{err: boom},
	}}
	var p *Poller
	src.onEmpty = func() { p.Stop() }
	p, slept := newTestPoller(src, HandlerFunc(func(context.Context, kit.Update) error { return nil }))

	_ = p.Run(context.Background())

	want := []time.Duration{
		10 * time.Second,
		time.Second, time.Second, time.Second, 32 * time.Second,
		10 * time.Second, // streak 6, still the fixed conflict wait
		60 * time.Second, // streak 7 keeps counting the conflicts
	}
	if len(*slept) != len(want) {
		t.Fatalf("slept = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v (all: %v)", i, (*slept)[i], want[i], *slept)
		}
	}
}

func TestHandlerFailureStillAdvances(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{results: []pollResult{{ups: []kit.Update{msg(1), msg(2), {ID: 3}}}}}
	var p *Poller
	src.onEmpty = func() { p.Stop() }
	calls := 0
	p, _ = newTestPoller(src, HandlerFunc(func(_ context.Context, up kit.Update) error {
		calls++
		if up.ID == 1 {
			panic("boom")
		}
		return errors.New("handler error")
	}))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2 (kindless update skipped)", calls)
	}
	if got := p.Cursor(); got != 4 {
		t.Fatalf("cursor = %d, want 4", got)
	}
	if got := src.offsets[len(src.offsets)-1]; got != 4 {
		t.Fatalf("last requested offset = %d, want 4", got)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{}
	p := New(Config{IdleDelay: 10 * time.Millisecond}, src, HandlerFunc(func(context.Context, kit.Update) error { return nil }), logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
