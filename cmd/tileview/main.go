// Package main is the entry point for the tile view server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasmap-sc/tileview/internal/api"
	"github.com/atlasmap-sc/tileview/internal/cache"
	"github.com/atlasmap-sc/tileview/internal/config"
	"github.com/atlasmap-sc/tileview/internal/loop"
	"github.com/atlasmap-sc/tileview/internal/pyramid"
	"github.com/atlasmap-sc/tileview/internal/render"
	"github.com/atlasmap-sc/tileview/internal/source"
	"github.com/atlasmap-sc/tileview/internal/tileview"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/tileview.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "Override the configured HTTP port")
	verbose := flag.Bool("verbose", false, "Log every tile load and level transition")
	debug := flag.Bool("debug", false, "Outline tiles in rendered frames")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *verbose {
		cfg.View.Verbose = true
	}

	log.Printf("Starting tile view server on port %d", cfg.Server.Port)

	cacheManager, err := cache.NewManager(cache.Config{
		TileCacheSizeMB: cfg.Cache.TileSizeMB,
		TileTTL:         cfg.Cache.TileTTL(),
		MissingSize:     cfg.Cache.MissingCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	tileSize := pyramid.Size{Width: cfg.View.TileWidth, Height: cfg.View.TileHeight}
	bitmaps := render.NewBitmapPool(tileSize.Width, tileSize.Height)

	opts := source.Options{
		Kind:     cfg.Source.Type,
		Name:     cfg.Source.Name,
		Pattern:  cfg.Source.Pattern,
		Path:     cfg.Source.MBTilesPath,
		MaxZoom:  -1,
		FlipY:    cfg.Source.FlipY,
		Colormap: cfg.Source.Colormap,
		Latency:  cfg.Source.Latency(),
		Base:     pyramid.Size{Width: cfg.Image.Width, Height: cfg.Image.Height},
		TileSize: tileSize,
		Verbose:  cfg.View.Verbose,
	}
	if cfg.Source.MaxZoom != nil {
		opts.MaxZoom = *cfg.Source.MaxZoom
	}
	src, err := source.Open(opts, cacheManager, bitmaps)
	if err != nil {
		log.Fatalf("Failed to open %s source: %v", cfg.Source.Type, err)
	}
	defer src.Close()
	log.Printf("Tile source: %s (%s)", src.Name(), cfg.Source.Type)

	// The loop owns every tile; run it until shutdown.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	l := loop.New(0)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Loop stopped: %v", err)
		}
	}()

	viewCfg := tileview.Config{
		TileSize:               tileSize,
		Density:                cfg.View.Density,
		RecycleOnClear:         *cfg.View.RecycleOnClear,
		DebounceDelay:          cfg.View.DebounceDelay(),
		PreviousLevelRetention: cfg.View.PreviousLevelRetention(),
		SoftenedBudget:         cfg.View.SoftenedBudget,
		Verbose:                cfg.View.Verbose,
		Fetcher:                src,
		Workers:                cfg.View.Workers,
		QueueSize:              cfg.View.QueueSize,
		Recycler:               bitmaps,
	}
	view, err := tileview.New(l, viewCfg)
	if err != nil {
		log.Fatalf("Failed to create view: %v", err)
	}

	if err := setupView(ctx, l, view, cfg); err != nil {
		log.Fatalf("Failed to set up view: %v", err)
	}
	log.Printf("Image %dx%d, %d detail level(s), tile %dx%d",
		cfg.Image.Width, cfg.Image.Height, len(cfg.Image.Levels), tileSize.Width, tileSize.Height)

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Loop:        l,
		View:        view,
		Compositor:  render.NewCompositor(render.Config{Background: color.Black, Debug: *debug}),
		Cache:       cacheManager,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := l.Do(shutdownCtx, view.Close); err != nil {
		log.Printf("Failed to close view: %v", err)
	}
	stop()
	<-loopDone

	log.Println("Server stopped")
}

// setupView declares the image, its levels and an initial viewport on the loop.
func setupView(ctx context.Context, l *loop.Loop, view *tileview.View, cfg *config.Config) error {
	preview, err := loadPreview(cfg.Image.Preview)
	if err != nil {
		return err
	}

	var setupErr error
	err = l.Do(ctx, func() {
		if setupErr = view.SetBounds(cfg.Image.Width, cfg.Image.Height); setupErr != nil {
			return
		}
		for _, scale := range cfg.Image.Levels {
			if setupErr = view.AddDetailLevel(scale); setupErr != nil {
				return
			}
		}
		if preview != nil {
			view.SetPreview(preview)
		}
		setupErr = view.SetSize(1024, 768)
	})
	return errors.Join(err, setupErr)
}

// loadPreview decodes the optional preview image.
func loadPreview(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preview: %w", err)
	}
	dec, err := source.NewDecoder(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	img, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode preview %s: %w", path, err)
	}
	log.Printf("Preview: %s (%dx%d)", path, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
