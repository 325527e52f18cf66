package storage

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestDecodeDocumentToleratesLegacyEntries(t *testing.T) {
	t.Parallel()

	in := []byte(`{"groups": [-1001, "-1002", "abc", 3.5, null, -1001, 0], "last_updated": "2024-01-01T00:00:00"}`)
	got, err := decodeDocument(in)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := []int64{-1002, -1001}; !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestDecodeDocumentEmpty(t *testing.T) {
	t.Parallel()

	got, err := decodeDocument([]byte("  \n"))
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v err %v", got, err)
	}
	if _, err := decodeDocument([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestEncodeDocumentShape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)
	b, err := encodeDocument([]int64{3, -5, 3}, now)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !slices.Equal(doc.Groups, []int64{-5, 3}) {
		t.Fatalf("groups=%v", doc.Groups)
	}
	if doc.LastUpdated != "2026-10-16T08:30:00Z" {
		t.Fatalf("last_updated=%q", doc.LastUpdated)
	}
}
