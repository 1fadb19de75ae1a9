package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{TileCacheSizeMB: 8, TileTTL: time.Minute, MaxTileSizeKB: 16, MissingSize: 4})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestTileKey(t *testing.T) {
	tests := []struct {
		scale float64
		want  string
	}{
		{1, "tile:slide:1/2/3"},
		{0.25, "tile:slide:0.25/2/3"},
		{0.125, "tile:slide:0.125/2/3"},
	}
	for _, tt := range tests {
		if got := TileKey("slide", tt.scale, 2, 3); got != tt.want {
			t.Errorf("TileKey(%v) = %q, want %q", tt.scale, got, tt.want)
		}
	}
}

func TestManager_Tiles(t *testing.T) {
	m := newTestManager(t)
	key := TileKey("slide", 0.5, 0, 0)

	if _, ok := m.GetTile(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := m.SetTile(key, []byte("png")); err != nil {
		t.Fatalf("SetTile failed: %v", err)
	}
	data, ok := m.GetTile(key)
	if !ok || string(data) != "png" {
		t.Fatalf("expected cached bytes, got %q (ok=%v)", data, ok)
	}

	m.Invalidate(key)
	if _, ok := m.GetTile(key); ok {
		t.Fatal("expected miss after Invalidate")
	}
	m.Invalidate("unknown")
}

func TestManager_Missing(t *testing.T) {
	m := newTestManager(t)
	key := TileKey("slide", 1, 4, 4)

	m.MarkMissing(key)
	if !m.IsMissing(key) {
		t.Fatal("expected key to be missing")
	}
	if got := m.Stats().Missing; got != 1 {
		t.Errorf("expected 1 missing entry, got %d", got)
	}

	// Storing the tile clears the missing mark.
	if err := m.SetTile(key, []byte{1}); err != nil {
		t.Fatalf("SetTile failed: %v", err)
	}
	if m.IsMissing(key) {
		t.Fatal("expected missing mark to be cleared")
	}

	// The memo is bounded.
	for i := 0; i < 10; i++ {
		m.MarkMissing(TileKey("slide", 1, i, 0))
	}
	if got := m.Stats().Missing; got != 4 {
		t.Errorf("expected missing memo capped at 4, got %d", got)
	}
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(t)
	key := TileKey("slide", 1, 0, 0)
	_ = m.SetTile(key, []byte("a"))
	m.GetTile(key)
	m.GetTile("absent")

	s := m.Stats()
	if s.TileEntries != 1 {
		t.Errorf("expected 1 entry, got %d", s.TileEntries)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %+v", s)
	}
	// Shard memory is preallocated, so it dwarfs the one stored byte.
	if s.CapacityBytes <= 1 {
		t.Errorf("expected allocated shard capacity, got %d", s.CapacityBytes)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := fields["capacity_bytes"]; !ok {
		t.Errorf("expected capacity_bytes in %s", data)
	}
}
