package engine

import (
	"path/filepath"
	"testing"
	"time"

	"evalportal/internal/domain/evaluation"
)

func TestFileCacheRoundTrip(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "nested", "evaluation.json"))

	if snap, err := cache.Load(); err != nil || snap != nil {
		t.Fatalf("empty cache should load (nil, nil), got %v, %v", snap, err)
	}

	rec := evaluation.NewDraft("emp-1", 2025, nil)
	rec.Summary.Comments = "work in flight"
	saved := &Snapshot{Record: rec, LastSavedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	if err := cache.Store(saved); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	loaded, err := cache.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Record.Summary.Comments != "work in flight" {
		t.Fatal("record not round-tripped")
	}
	if !loaded.LastSavedAt.Equal(saved.LastSavedAt) {
		t.Fatal("lastSavedAt not round-tripped")
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if snap, err := cache.Load(); err != nil || snap != nil {
		t.Fatal("cleared cache should be empty")
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("clearing an empty cache must not fail: %v", err)
	}
}
