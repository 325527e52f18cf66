package groups

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	logx "azkarbot/pkg/logx"
)

// memStore records every saved set.
type memStore struct {
	mu      sync.Mutex
	initial []int64
	saves   [][]int64
	failAt  int
}

func (m *memStore) Load(ctx context.Context) ([]int64, error) { return m.initial, nil }

func (m *memStore) Save(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, slices.Clone(ids))
	if m.failAt > 0 && len(m.saves) == m.failAt {
		return errors.New("disk full")
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) last() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return nil
	}
	return m.saves[len(m.saves)-1]
}

func TestRegistryPersistsEveryMutation(t *testing.T) {
	t.Parallel()

	st := &memStore{initial: []int64{-3, -1}}
	r, err := Load(context.Background(), st, logx.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx := context.Background()
	if added, err := r.Add(ctx, -2); !added || err != nil {
		t.Fatalf("add: %v %v", added, err)
	}
	if added, _ := r.Add(ctx, -2); added {
		t.Fatalf("duplicate add must be a no-op")
	}
	if removed, err := r.Remove(ctx, -3); !removed || err != nil {
		t.Fatalf("remove: %v %v", removed, err)
	}
	if removed, _ := r.Remove(ctx, -99); removed {
		t.Fatalf("removing an absent id must be a no-op")
	}

	if len(st.saves) != 2 {
		t.Fatalf("saves=%d want 2", len(st.saves))
	}
	if want := []int64{-2, -1}; !slices.Equal(st.last(), want) {
		t.Fatalf("persisted=%v want %v", st.last(), want)
	}
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	t.Parallel()

	r, _ := Load(context.Background(), &memStore{initial: []int64{-1, -2}}, logx.Nop())
	snap := r.Snapshot()
	_, _ = r.Remove(context.Background(), -1)

	if want := []int64{-2, -1}; !slices.Equal(snap, want) {
		t.Fatalf("snapshot mutated: %v", snap)
	}
	if r.Contains(-1) || r.Len() != 1 {
		t.Fatalf("registry=%v", r.Snapshot())
	}
}

func TestRegistryReportsPersistFailure(t *testing.T) {
	t.Parallel()

	st := &memStore{failAt: 1}
	r, _ := Load(context.Background(), st, logx.Nop())
	added, err := r.Add(context.Background(), -5)
	if !added || err == nil {
		t.Fatalf("added=%v err=%v", added, err)
	}
	if !r.Contains(-5) {
		t.Fatalf("in-memory set should keep the change")
	}
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if want := []int64{-5}; !slices.Equal(st.last(), want) {
		t.Fatalf("flushed=%v", st.last())
	}
}

func TestRegistryConcurrentMutations(t *testing.T) {
	t.Parallel()

	st := &memStore{}
	r, _ := Load(context.Background(), st, logx.Nop())

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = r.Add(context.Background(), -id)
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 || len(st.last()) != 50 {
		t.Fatalf("len=%d persisted=%d", r.Len(), len(st.last()))
	}
}

// flakyStore fails the first failLoads loads, then returns initial.
type flakyStore struct {
	memStore
	failLoads int
	loads     int
}

func (f *flakyStore) Load(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loads <= f.failLoads {
		return nil, errors.New("s3: timeout")
	}
	return f.initial, nil
}

func (f *flakyStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func TestFailedLoadNeverOverwritesStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &flakyStore{memStore: memStore{initial: []int64{-3, -2, -1}}, failLoads: 1}
	r, err := Load(ctx, st, logx.Nop())
	if err == nil {
		t.Fatalf("expected load error")
	}
	if r == nil || r.Loaded() || r.Len() != 0 {
		t.Fatalf("registry loaded=%v len=%d", r.Loaded(), r.Len())
	}

	if err := r.Flush(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("flush err=%v want ErrNotLoaded", err)
	}
	if added, err := r.Add(ctx, -9); !added || err != nil {
		t.Fatalf("add=%v err=%v", added, err)
	}
	if removed, err := r.Remove(ctx, -2); removed || err != nil {
		t.Fatalf("remove=%v err=%v", removed, err)
	}
	if n := st.saveCount(); n != 0 {
		t.Fatalf("saves before load=%d want 0", n)
	}

	// The removal of an id only the store knew about survives the merge.
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if want := []int64{-9, -3, -1}; !slices.Equal(st.last(), want) {
		t.Fatalf("persisted=%v want %v", st.last(), want)
	}
}

func TestReloadMergesChangesMadeBeforeLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &flakyStore{memStore: memStore{initial: []int64{-3, -2, -1}}, failLoads: 1}
	r, _ := Load(ctx, st, logx.Nop())

	_, _ = r.Add(ctx, -9)
	_, _ = r.Add(ctx, -2)
	_, _ = r.Remove(ctx, -2)

	if err := r.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !r.Loaded() {
		t.Fatalf("registry should be loaded")
	}
	want := []int64{-9, -3, -1}
	if got := r.Snapshot(); !slices.Equal(got, want) {
		t.Fatalf("snapshot=%v want %v", got, want)
	}
	if n := st.saveCount(); n != 1 || !slices.Equal(st.last(), want) {
		t.Fatalf("saves=%d last=%v want one save of %v", n, st.last(), want)
	}

	// A second reload does not touch the store again.
	if err := r.Reload(ctx); err != nil || st.loads != 2 {
		t.Fatalf("reload again err=%v loads=%d", err, st.loads)
	}
}

func TestReloadWithoutChangesDoesNotSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &flakyStore{memStore: memStore{initial: []int64{-1}}, failLoads: 2}
	r, _ := Load(ctx, st, logx.Nop())
	if err := r.Reload(ctx); err == nil {
		t.Fatalf("second load should still fail")
	}
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if n := st.saveCount(); n != 0 {
		t.Fatalf("saves=%d want 0", n)
	}
	if err := r.Flush(ctx); err != nil || !slices.Equal(st.last(), []int64{-1}) {
		t.Fatalf("flush err=%v last=%v", err, st.last())
	}
}
