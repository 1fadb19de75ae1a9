// Package cache provides caching for encoded tile bytes and known-missing tiles.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	TileCacheSizeMB int
	TileTTL         time.Duration
	MaxTileSizeKB   int
	MissingSize     int
}

// DefaultConfig returns the cache settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		TileCacheSizeMB: 256,
		TileTTL:         time.Hour,
		MaxTileSizeKB:   256,
		MissingSize:     10000,
	}
}

// Manager caches encoded tile bytes and remembers tiles the source does not have.
// It is safe for concurrent use.
type Manager struct {
	tileCache *bigcache.BigCache
	missing   *lru.Cache[string, struct{}]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	def := DefaultConfig()
	if cfg.TileTTL <= 0 {
		cfg.TileTTL = def.TileTTL
	}
	if cfg.MaxTileSizeKB <= 0 {
		cfg.MaxTileSizeKB = def.MaxTileSizeKB
	}
	if cfg.MissingSize <= 0 {
		cfg.MissingSize = def.MissingSize
	}

	// Size the initial shards to the hard limit rather than the bigcache default.
	entries := 1024
	if cfg.TileCacheSizeMB > 0 {
		entries = max(cfg.TileCacheSizeMB*1024/cfg.MaxTileSizeKB, 64)
	}

	tileCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.TileTTL,
		CleanWindow:        cfg.TileTTL / 2,
		MaxEntriesInWindow: entries,
		MaxEntrySize:       cfg.MaxTileSizeKB * 1024,
		HardMaxCacheSize:   cfg.TileCacheSizeMB,
		Verbose:            false,
	}

	tileCache, err := bigcache.New(context.Background(), tileCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}

	missing, err := lru.New[string, struct{}](cfg.MissingSize)
	if err != nil {
		tileCache.Close()
		return nil, fmt.Errorf("failed to create missing tile cache: %w", err)
	}

	return &Manager{
		tileCache: tileCache,
		missing:   missing,
	}, nil
}

// GetTile retrieves encoded tile bytes from cache.
func (m *Manager) GetTile(key string) ([]byte, bool) {
	data, err := m.tileCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetTile stores encoded tile bytes in cache.
func (m *Manager) SetTile(key string, data []byte) error {
	m.missing.Remove(key)
	return m.tileCache.Set(key, data)
}

// MarkMissing records that the source has no tile for key.
func (m *Manager) MarkMissing(key string) {
	m.missing.Add(key, struct{}{})
}

// IsMissing reports whether key was recorded as missing.
func (m *Manager) IsMissing(key string) bool {
	return m.missing.Contains(key)
}

// Invalidate forgets everything cached for key.
func (m *Manager) Invalidate(key string) {
	m.missing.Remove(key)
	// Delete only fails for unknown keys.
	_ = m.tileCache.Delete(key)
}

// TileKey generates a cache key for a tile of the named source.
func TileKey(source string, scale float64, row, column int) string {
	return fmt.Sprintf("tile:%s:%s/%d/%d", source, strconv.FormatFloat(scale, 'g', -1, 64), row, column)
}

// Stats holds cache statistics.
type Stats struct {
	TileEntries int `json:"tile_entries"`
	// CapacityBytes is the memory allocated by the tile cache shards, not
	// the size of the stored tiles.
	CapacityBytes int   `json:"capacity_bytes"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Missing       int   `json:"missing"`
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	s := m.tileCache.Stats()
	return Stats{
		TileEntries:   m.tileCache.Len(),
		CapacityBytes: m.tileCache.Capacity(),
		Hits:          s.Hits,
		Misses:        s.Misses,
		Missing:       m.missing.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.tileCache.Close()
}
