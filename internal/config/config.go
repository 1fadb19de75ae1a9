// Package config handles configuration loading for the tile view server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Image  ImageConfig  `yaml:"image"`
	View   ViewConfig   `yaml:"view"`
	Source SourceConfig `yaml:"source"`
	Cache  CacheConfig  `yaml:"cache"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ImageConfig describes the base image and its pyramid.
type ImageConfig struct {
	Width  int       `yaml:"width"`
	Height int       `yaml:"height"`
	Levels []float64 `yaml:"levels"`
	// Preview is an optional low resolution image of the whole base image.
	Preview string `yaml:"preview"`
}

// ViewConfig contains tile view settings.
type ViewConfig struct {
	TileWidth                int     `yaml:"tile_width"`
	TileHeight               int     `yaml:"tile_height"`
	Density                  float64 `yaml:"density"`
	RecycleOnClear           *bool   `yaml:"recycle_on_clear"`
	DebounceDelayMS          int     `yaml:"debounce_delay_ms"`
	PreviousLevelRetentionMS int     `yaml:"previous_level_retention_ms"`
	Workers                  int     `yaml:"workers"`
	QueueSize                int     `yaml:"queue_size"`
	SoftenedBudget           int     `yaml:"softened_budget"`
	Verbose                  bool    `yaml:"verbose"`
}

// SourceConfig selects where tiles come from.
type SourceConfig struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	MBTilesPath string `yaml:"mbtiles_path"`
	// MaxZoom is the MBTiles zoom holding scale 1 tiles; nil reads it from metadata.
	MaxZoom   *int   `yaml:"max_zoom"`
	FlipY     bool   `yaml:"flip_y"`
	Colormap  string `yaml:"colormap"`
	LatencyMS int    `yaml:"latency_ms"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	TileSizeMB       int `yaml:"tile_size_mb"`
	TileTTLMinutes   int `yaml:"tile_ttl_minutes"`
	MissingCacheSize int `yaml:"missing_cache_size"`
}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	recycle := true
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Image: ImageConfig{
			Width:  8192,
			Height: 8192,
			Levels: []float64{0.03125, 0.0625, 0.125, 0.25, 0.5, 1},
		},
		View: ViewConfig{
			TileWidth:                256,
			TileHeight:               256,
			Density:                  1,
			RecycleOnClear:           &recycle,
			DebounceDelayMS:          100,
			PreviousLevelRetentionMS: 10000,
			QueueSize:                1024,
		},
		Source: SourceConfig{
			Type:     "pattern",
			Colormap: "viridis",
		},
		Cache: CacheConfig{
			TileSizeMB:       512,
			TileTTLMinutes:   10,
			MissingCacheSize: 10000,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Image.Width == 0 && cfg.Image.Height == 0 {
		cfg.Image.Width = defaults.Image.Width
		cfg.Image.Height = defaults.Image.Height
	}
	if len(cfg.Image.Levels) == 0 {
		cfg.Image.Levels = defaults.Image.Levels
	}
	if cfg.View.TileWidth == 0 {
		cfg.View.TileWidth = defaults.View.TileWidth
	}
	if cfg.View.TileHeight == 0 {
		cfg.View.TileHeight = defaults.View.TileHeight
	}
	if cfg.View.Density == 0 {
		cfg.View.Density = defaults.View.Density
	}
	if cfg.View.RecycleOnClear == nil {
		cfg.View.RecycleOnClear = defaults.View.RecycleOnClear
	}
	if cfg.View.DebounceDelayMS == 0 {
		cfg.View.DebounceDelayMS = defaults.View.DebounceDelayMS
	}
	if cfg.View.PreviousLevelRetentionMS == 0 {
		cfg.View.PreviousLevelRetentionMS = defaults.View.PreviousLevelRetentionMS
	}
	if cfg.View.QueueSize == 0 {
		cfg.View.QueueSize = defaults.View.QueueSize
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = defaults.Source.Type
	}
	if cfg.Source.Colormap == "" {
		cfg.Source.Colormap = defaults.Source.Colormap
	}
	if cfg.Cache.TileSizeMB == 0 {
		cfg.Cache.TileSizeMB = defaults.Cache.TileSizeMB
	}
	if cfg.Cache.TileTTLMinutes == 0 {
		cfg.Cache.TileTTLMinutes = defaults.Cache.TileTTLMinutes
	}
	if cfg.Cache.MissingCacheSize == 0 {
		cfg.Cache.MissingCacheSize = defaults.Cache.MissingCacheSize
	}
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalid, c.Image.Width, c.Image.Height)
	}
	for _, s := range c.Image.Levels {
		if s <= 0 {
			return fmt.Errorf("%w: level scale %g must be positive", ErrInvalid, s)
		}
	}
	if c.View.TileWidth <= 0 || c.View.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalid, c.View.TileWidth, c.View.TileHeight)
	}
	if c.View.Density < 0 {
		return fmt.Errorf("%w: density %g", ErrInvalid, c.View.Density)
	}
	if c.View.DebounceDelayMS < 0 || c.View.PreviousLevelRetentionMS < 0 || c.Source.LatencyMS < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}

	switch c.Source.Type {
	case "pattern":
	case "dir":
		if c.Source.Pattern == "" {
			return fmt.Errorf("%w: dir source needs a pattern", ErrInvalid)
		}
	case "mbtiles":
		if c.Source.MBTilesPath == "" {
			return fmt.Errorf("%w: mbtiles source needs mbtiles_path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalid, c.Source.Type)
	}
	return nil
}

// DebounceDelay returns the update debounce delay.
func (v ViewConfig) DebounceDelay() time.Duration {
	return time.Duration(v.DebounceDelayMS) * time.Millisecond
}

// PreviousLevelRetention returns how long the previous level outlives a transition.
func (v ViewConfig) PreviousLevelRetention() time.Duration {
	return time.Duration(v.PreviousLevelRetentionMS) * time.Millisecond
}

// Latency returns the artificial source latency.
func (s SourceConfig) Latency() time.Duration {
	return time.Duration(s.LatencyMS) * time.Millisecond
}

// TileTTL returns the tile cache entry lifetime.
func (c CacheConfig) TileTTL() time.Duration {
	return time.Duration(c.TileTTLMinutes) * time.Minute
}
