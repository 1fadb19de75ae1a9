package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Full(t *testing.T) {
	content := `
server:
  port: 9000
image:
  width: 4000
  height: 3000
  levels: [0.25, 0.5, 1]
  preview: "/data/slide/preview.png"
view:
  tile_width: 512
  tile_height: 512
  density: 2
  recycle_on_clear: false
  debounce_delay_ms: 50
  previous_level_retention_ms: 2000
  softened_budget: 64
  verbose: true
source:
  type: mbtiles
  mbtiles_path: "/data/slide/tiles.mbtiles"
  max_zoom: 5
  flip_y: true
cache:
  tile_size_mb: 64
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if diff := cmp.Diff([]float64{0.25, 0.5, 1}, cfg.Image.Levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if *cfg.View.RecycleOnClear {
		t.Error("expected recycle_on_clear false to be kept")
	}
	if cfg.View.DebounceDelay() != 50*time.Millisecond {
		t.Errorf("unexpected debounce delay %v", cfg.View.DebounceDelay())
	}
	if cfg.View.PreviousLevelRetention() != 2*time.Second {
		t.Errorf("unexpected retention %v", cfg.View.PreviousLevelRetention())
	}
	if cfg.Source.MaxZoom == nil || *cfg.Source.MaxZoom != 5 {
		t.Errorf("unexpected max_zoom %v", cfg.Source.MaxZoom)
	}
	// Unset values fall back to defaults.
	if cfg.Cache.TileTTLMinutes != 10 {
		t.Errorf("expected default ttl, got %d", cfg.Cache.TileTTLMinutes)
	}
	if cfg.View.QueueSize != 1024 {
		t.Errorf("expected default queue size, got %d", cfg.View.QueueSize)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "server:\n  port: 8081\n")

	want := DefaultConfig()
	want.Server.Port = 8081
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got %v", err)
	}
	if cfg.Source.Type != "pattern" {
		t.Errorf("expected pattern source, got %q", cfg.Source.Type)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative level":  "image:\n  levels: [0.5, -1]\n",
		"dir no pattern":  "source:\n  type: dir\n",
		"mbtiles no path": "source:\n  type: mbtiles\n",
		"unknown source":  "source:\n  type: s3\n",
		"negative delay":  "view:\n  debounce_delay_ms: -5\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, content)
			if _, err := Load(path); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "server: [")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
