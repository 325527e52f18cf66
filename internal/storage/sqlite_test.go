package storage

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	logx "azkarbot/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groups.db")
	st, err := Open(ctx, Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if err := st.Save(ctx, []int64{-3, -1, -2, -1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Save(ctx, []int64{-1, -3, -4}); err != nil {
		t.Fatalf("save again: %v", err)
	}

	ids, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := []int64{-4, -3, -1}; !slices.Equal(ids, want) {
		t.Fatalf("ids=%v want %v", ids, want)
	}
}

func TestSQLiteStoreKeepsAddedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	raw, err := openSQLite(ctx, Config{Path: filepath.Join(t.TempDir(), "g.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st := raw.(*sqliteStore)
	defer st.Close()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return first }
	if err := st.Save(ctx, []int64{-7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.now = func() time.Time { return first.Add(24 * time.Hour) }
	if err := st.Save(ctx, []int64{-7, -8}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var addedAt string
	if err := st.db.QueryRowContext(ctx, `SELECT added_at FROM groups WHERE chat_id = -7`).Scan(&addedAt); err != nil {
		t.Fatalf("query: %v", err)
	}
	if addedAt != "2026-01-01T00:00:00Z" {
		t.Fatalf("added_at=%q", addedAt)
	}
}
