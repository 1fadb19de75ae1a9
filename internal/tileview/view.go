// Package tileview ties the tile pyramid, the load scheduler and the level
// transition together behind a host-driven viewport.
//
// A View belongs to one loop.Loop: every method must run on that loop's
// goroutine (use loop.Post or loop.Do from elsewhere).
package tileview

import (
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/atlasmap-sc/tileview/internal/loader"
	"github.com/atlasmap-sc/tileview/internal/loop"
	"github.com/atlasmap-sc/tileview/internal/pyramid"
)

var (
	// ErrNoBounds is returned when a level is added before the base bounds are set.
	ErrNoBounds = errors.New("tileview: base bounds not set")
	// ErrBoundsLocked is returned when bounds change after levels were added.
	ErrBoundsLocked = errors.New("tileview: base bounds already in use")
)

// Config contains view configuration. Start from DefaultConfig.
type Config struct {
	TileSize               pyramid.Size
	Density                float64
	RecycleOnClear         bool
	DebounceDelay          time.Duration
	PreviousLevelRetention time.Duration
	SoftenedBudget         int
	Verbose                bool

	Fetcher loader.Fetcher
	// Executor runs fetches. When nil the view starts its own pool of
	// Workers goroutines with a QueueSize job queue.
	Executor  loader.Executor
	Workers   int
	QueueSize int
	// Recycler receives released pixels when RecycleOnClear is set.
	Recycler loader.Recycler
	// OnInvalidate is called on the loop goroutine when a tile finishes loading.
	OnInvalidate func(rect pyramid.Rect)
}

// DefaultConfig returns the default view configuration.
func DefaultConfig() Config {
	return Config{
		TileSize:               pyramid.Size{Width: 256, Height: 256},
		Density:                1,
		RecycleOnClear:         true,
		DebounceDelay:          100 * time.Millisecond,
		PreviousLevelRetention: 10 * time.Second,
		Workers:                loader.DefaultWorkers(),
		QueueSize:              1024,
	}
}

// View is a tile cache driven by the host's viewport.
type View struct {
	cfg      Config
	loop     *loop.Loop
	index    pyramid.ScaleIndex
	sched    *loader.Scheduler
	trans    *Transition
	debounce *loop.Debouncer
	pool     *loader.WorkerPool

	base      pyramid.Size
	hasBounds bool

	scrollX, scrollY int
	width, height    int
	zoom             float64

	preview    image.Image
	previewSrc pyramid.Rect

	updates    int
	generation uint64
}

// New creates a view owned by l.
func New(l *loop.Loop, cfg Config) (*View, error) {
	defaults := DefaultConfig()
	if cfg.TileSize.Width <= 0 || cfg.TileSize.Height <= 0 {
		cfg.TileSize = defaults.TileSize
	}
	if cfg.Density <= 0 {
		cfg.Density = defaults.Density
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = defaults.DebounceDelay
	}
	if cfg.PreviousLevelRetention <= 0 {
		cfg.PreviousLevelRetention = defaults.PreviousLevelRetention
	}

	v := &View{cfg: cfg, loop: l, zoom: 1}

	executor := cfg.Executor
	if executor == nil {
		v.pool = loader.NewWorkerPool(loader.PoolConfig{Workers: cfg.Workers, QueueSize: cfg.QueueSize})
		executor = v.pool
	}

	sched, err := loader.NewScheduler(loader.Config{
		Fetcher:        cfg.Fetcher,
		Executor:       executor,
		Post:           l.Post,
		Invalidate:     v.invalidate,
		Recycler:       cfg.Recycler,
		RecycleOnClear: cfg.RecycleOnClear,
		SoftenedBudget: cfg.SoftenedBudget,
		Verbose:        cfg.Verbose,
	})
	if err != nil {
		if v.pool != nil {
			v.pool.Stop()
		}
		return nil, fmt.Errorf("failed to create load scheduler: %w", err)
	}
	v.sched = sched
	v.trans = newTransition(l, sched, cfg.PreviousLevelRetention, cfg.Verbose)
	v.debounce = loop.NewDebouncer(l, cfg.DebounceDelay, v.UpdateTiles)
	return v, nil
}

// SetBounds declares the base image size at scale 1. It must precede AddDetailLevel.
func (v *View) SetBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("tileview: invalid bounds %dx%d", width, height)
	}
	if v.index.Len() > 0 {
		return ErrBoundsLocked
	}
	v.base = pyramid.Size{Width: width, Height: height}
	v.hasBounds = true
	return nil
}

// AddDetailLevel registers a resolution level. A level with an existing scale replaces it.
func (v *View) AddDetailLevel(scale float64) error {
	if !v.hasBounds {
		return ErrNoBounds
	}
	l, err := pyramid.NewDetailLevel(scale, v.base.Width, v.base.Height, v.cfg.TileSize)
	if err != nil {
		return err
	}
	if replaced := v.index.Add(l); replaced != nil {
		log.Printf("[View] replacing detail level %g", scale)
		v.trans.Replace(replaced, l)
	}
	if v.cfg.Verbose {
		log.Printf("[View] added %v", l)
	}
	// A live view may now prefer the new level, and a replaced one starts empty.
	if v.trans.Current() != nil {
		if err := v.determineDetailLevel(); err != nil {
			return err
		}
		v.RequestUpdate()
	}
	return nil
}

// SetPreview sets the low resolution image drawn beneath all levels.
func (v *View) SetPreview(img image.Image) {
	v.preview = img
	if img != nil {
		b := img.Bounds()
		v.previewSrc = pyramid.Rect{Left: b.Min.X, Top: b.Min.Y, Right: b.Max.X, Bottom: b.Max.Y}
	}
	v.generation++
}

// SetSize updates the visible size, reselects the level and requests an update.
func (v *View) SetSize(width, height int) error {
	v.width, v.height = max(width, 0), max(height, 0)
	err := v.determineDetailLevel()
	v.RequestUpdate()
	return err
}

// ScrollTo updates the scroll offset and requests an update.
func (v *View) ScrollTo(x, y int) {
	v.scrollX, v.scrollY = x, y
	v.RequestUpdate()
}

// SetScale updates the zoom factor, reselects the level and requests an update.
func (v *View) SetScale(zoom float64) error {
	if zoom <= 0 {
		return fmt.Errorf("tileview: invalid zoom %g", zoom)
	}
	v.zoom = zoom
	err := v.determineDetailLevel()
	v.RequestUpdate()
	return err
}

// RequestUpdate schedules a debounced update pass.
func (v *View) RequestUpdate() {
	v.debounce.Trigger()
}

// Flush runs a pending update pass now instead of waiting for the debounce delay.
func (v *View) Flush() {
	v.debounce.Cancel()
	v.UpdateTiles()
}

func (v *View) determineDetailLevel() error {
	desired, err := v.index.Select(v.zoom, v.cfg.Density)
	if err != nil {
		return err
	}
	v.trans.Reconcile(desired)
	return nil
}

// Viewport returns the visible rectangle in zoomed pixels.
func (v *View) Viewport() pyramid.Viewport {
	return pyramid.Viewport{X: v.scrollX, Y: v.scrollY, Width: v.width, Height: v.height}
}

// Zoom returns the current zoom factor.
func (v *View) Zoom() float64 { return v.zoom }

// UpdateTiles loads the visible tiles of the current level and clears the
// rest, and clears tiles of the previous level that scrolled out of view.
func (v *View) UpdateTiles() {
	current := v.trans.Current()
	if current == nil {
		return
	}
	v.updates++
	vp := v.Viewport()

	if previous := v.trans.Previous(); previous != nil {
		r := pyramid.VisibleRange(previous, vp, v.zoom)
		for tile, visible := range previous.Classify(r) {
			if !visible {
				v.sched.Clear(tile)
			}
		}
	}

	r := pyramid.VisibleRange(current, vp, v.zoom)
	for tile, visible := range current.Classify(r) {
		if visible {
			v.sched.Load(tile)
		} else {
			v.sched.Clear(tile)
		}
	}
}

func (v *View) invalidate(tile *pyramid.Tile) {
	v.generation++
	if v.cfg.OnInvalidate != nil {
		v.cfg.OnInvalidate(tile.Rect)
	}
}

// Close cancels pending work and releases every tile.
func (v *View) Close() {
	v.debounce.Cancel()
	v.trans.Reset()
	if v.pool != nil {
		// Workers may be blocked posting to this loop; let it keep running.
		go v.pool.Stop()
	}
}
