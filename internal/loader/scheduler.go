// Package loader schedules asynchronous tile loads for a tile view.
//
// A Scheduler is owned by the view's loop goroutine: every method must be
// called from it. Fetches run on an Executor and their results are posted
// back to the loop before any tile state changes.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasmap-sc/tileview/internal/pyramid"
)

// Fetcher produces the pixels of one tile. It is called off the loop
// goroutine, concurrently for different tiles, and should return promptly
// once ctx is cancelled. A nil image with a nil error means there is no tile.
type Fetcher interface {
	Fetch(ctx context.Context, scale float64, row, column int) (image.Image, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, scale float64, row, column int) (image.Image, error)

func (f FetcherFunc) Fetch(ctx context.Context, scale float64, row, column int) (image.Image, error) {
	return f(ctx, scale, row, column)
}

// Recycler takes back pixel storage released by a cleared tile.
type Recycler interface {
	Recycle(img image.Image)
}

// Config contains scheduler configuration.
type Config struct {
	Fetcher  Fetcher
	Executor Executor
	// Post runs a function on the owning loop goroutine.
	Post func(func()) bool
	// Invalidate is called on the loop goroutine when a tile finishes loading.
	Invalidate func(*pyramid.Tile)
	// Recycler receives released pixels when RecycleOnClear is set.
	Recycler       Recycler
	RecycleOnClear bool
	// SoftenedBudget caps the number of softened tiles kept; the least
	// recently softened tile is reclaimed beyond it. Zero keeps all of them.
	SoftenedBudget int
	Verbose        bool
}

// Stats counts scheduler events.
type Stats struct {
	Issued    int `json:"issued"`
	Loaded    int `json:"loaded"`
	Missing   int `json:"missing"`
	Failed    int `json:"failed"`
	Stale     int `json:"stale"`
	Cancelled int `json:"cancelled"`
	Rejected  int `json:"rejected"`
	Reclaimed int `json:"reclaimed"`
	InFlight  int `json:"in_flight"`
}

// Scheduler dispatches and cancels tile loads.
type Scheduler struct {
	cfg        Config
	nextHandle pyramid.LoadHandle
	running    map[pyramid.LoadHandle]context.CancelFunc
	softened   *lru.Cache[*pyramid.Tile, struct{}]
	stats      Stats
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("loader: fetcher is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("loader: executor is required")
	}
	if cfg.Post == nil {
		return nil, errors.New("loader: post function is required")
	}

	s := &Scheduler{
		cfg:     cfg,
		running: make(map[pyramid.LoadHandle]context.CancelFunc),
	}
	if cfg.SoftenedBudget > 0 {
		softened, err := lru.NewWithEvict[*pyramid.Tile, struct{}](cfg.SoftenedBudget, s.reclaim)
		if err != nil {
			return nil, fmt.Errorf("failed to create softened budget: %w", err)
		}
		s.softened = softened
	}
	return s, nil
}

// Load starts fetching tile unless it already has pixels or a load in flight.
func (s *Scheduler) Load(tile *pyramid.Tile) {
	if tile.State() != pyramid.Empty || tile.Handle() != 0 {
		return
	}

	s.nextHandle++
	h := s.nextHandle
	ctx, cancel := context.WithCancel(context.Background())
	tile.SetHandle(h)
	s.running[h] = cancel

	if s.cfg.Verbose {
		log.Printf("[LoadScheduler] scheduling load %v", tile)
	}

	// Geometry is immutable, so the job captures it by value.
	scale, row, column := tile.Scale, tile.Row, tile.Column
	err := s.cfg.Executor.Submit(func() {
		img, err := s.fetch(ctx, scale, row, column)
		if !s.cfg.Post(func() { s.complete(tile, h, img, err) }) {
			cancel()
		}
	})
	if err != nil {
		cancel()
		delete(s.running, h)
		tile.SetHandle(0)
		s.stats.Rejected++
		log.Printf("[LoadScheduler] failed to submit load %v: %v", tile, err)
		return
	}
	s.stats.Issued++
}

func (s *Scheduler) fetch(ctx context.Context, scale float64, row, column int) (img image.Image, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return s.cfg.Fetcher.Fetch(ctx, scale, row, column)
}

// complete applies a finished job on the loop goroutine.
func (s *Scheduler) complete(tile *pyramid.Tile, h pyramid.LoadHandle, img image.Image, err error) {
	if cancel, ok := s.running[h]; ok {
		cancel()
		delete(s.running, h)
	}

	if tile.Handle() != h {
		s.stats.Stale++
		if s.cfg.Verbose {
			log.Printf("[LoadScheduler] dropping stale result %v", tile)
		}
		if img != nil && s.cfg.RecycleOnClear {
			s.recycle(img)
		}
		return
	}

	tile.SetHandle(0)
	switch {
	case err != nil:
		s.stats.Failed++
		if !errors.Is(err, context.Canceled) {
			log.Printf("[LoadScheduler] loading %v failed: %v", tile, err)
		}
	case img == nil:
		s.stats.Missing++
	default:
		s.stats.Loaded++
		tile.SetLoaded(img)
		if s.cfg.Verbose {
			log.Printf("[LoadScheduler] load complete %v", tile)
		}
		if s.cfg.Invalidate != nil {
			s.cfg.Invalidate(tile)
		}
	}
}

// Cancel interrupts the in-flight load of tile without waiting for it.
func (s *Scheduler) Cancel(tile *pyramid.Tile) {
	h := tile.Handle()
	if h == 0 {
		return
	}
	if s.cfg.Verbose {
		log.Printf("[LoadScheduler] canceling load %v", tile)
	}
	if cancel, ok := s.running[h]; ok {
		cancel()
		delete(s.running, h)
	}
	tile.SetHandle(0)
	s.stats.Cancelled++
}

// Clear cancels any load of tile and releases its pixels.
func (s *Scheduler) Clear(tile *pyramid.Tile) {
	s.Cancel(tile)

	if tile.State() == pyramid.Empty {
		return
	}
	if s.cfg.Verbose {
		log.Printf("[LoadScheduler] clearing bitmap %v", tile)
	}
	img := tile.Release()
	if s.softened != nil {
		// The eviction callback sees an empty tile and does nothing.
		s.softened.Remove(tile)
	}
	if img != nil && s.cfg.RecycleOnClear {
		s.recycle(img)
	}
}

// Soften marks the pixels of a loaded tile as reclaimable.
func (s *Scheduler) Soften(tile *pyramid.Tile) {
	if !tile.Soften() {
		return
	}
	if s.softened != nil {
		s.softened.Add(tile, struct{}{})
	}
}

// reclaim releases a softened tile pushed out of the budget.
func (s *Scheduler) reclaim(tile *pyramid.Tile, _ struct{}) {
	if tile.State() != pyramid.Softened {
		return
	}
	img := tile.Release()
	s.stats.Reclaimed++
	if s.cfg.Verbose {
		log.Printf("[LoadScheduler] reclaimed softened bitmap %v", tile)
	}
	if img != nil && s.cfg.RecycleOnClear {
		s.recycle(img)
	}
}

func (s *Scheduler) recycle(img image.Image) {
	if s.cfg.Recycler != nil {
		s.cfg.Recycler.Recycle(img)
	}
}

// Stats returns the event counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.InFlight = len(s.running)
	return st
}
