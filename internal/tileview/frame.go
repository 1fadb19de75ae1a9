package tileview

import (
	"image"
	"iter"

	"github.com/atlasmap-sc/tileview/internal/loader"
	"github.com/atlasmap-sc/tileview/internal/pyramid"
)

// DrawTile is one cell to draw. Bitmap is nil when nothing is loaded for it.
type DrawTile struct {
	Scale  float64
	Row    int
	Column int
	Rect   pyramid.Rect
	Bitmap image.Image
}

// Frame is what a drawing consumer needs to paint the viewport.
type Frame struct {
	Viewport   pyramid.Viewport
	Zoom       float64
	Base       pyramid.Size
	TileSize   pyramid.Size
	Preview    image.Image
	PreviewSrc pyramid.Rect
	// Tiles lists the previous level first so the current level paints over it.
	Tiles      []DrawTile
	Generation uint64
}

// VisibleTiles yields the rect and pixels of each tile of l within the
// viewport, in row-major order. Pixels are nil for tiles without a bitmap.
func (v *View) VisibleTiles(l *pyramid.DetailLevel) iter.Seq2[pyramid.Rect, image.Image] {
	r := pyramid.VisibleRange(l, v.Viewport(), v.zoom)
	return func(yield func(pyramid.Rect, image.Image) bool) {
		for tile := range l.TilesIn(r) {
			if !yield(tile.Rect, tile.Bitmap()) {
				return
			}
		}
	}
}

// Frame snapshots the drawable state. The bitmaps stay owned by the view:
// consumers must finish with them before the loop runs another task.
func (v *View) Frame() Frame {
	f := Frame{
		Viewport:   v.Viewport(),
		Zoom:       v.zoom,
		Base:       v.base,
		TileSize:   v.cfg.TileSize,
		Preview:    v.preview,
		PreviewSrc: v.previewSrc,
		Generation: v.generation,
	}
	for _, l := range []*pyramid.DetailLevel{v.trans.Previous(), v.trans.Current()} {
		if l == nil {
			continue
		}
		r := pyramid.VisibleRange(l, f.Viewport, f.Zoom)
		for tile := range l.TilesIn(r) {
			f.Tiles = append(f.Tiles, DrawTile{
				Scale:  tile.Scale,
				Row:    tile.Row,
				Column: tile.Column,
				Rect:   tile.Rect,
				Bitmap: tile.Bitmap(),
			})
		}
	}
	return f
}

// LevelInfo describes a registered level.
type LevelInfo struct {
	Scale    float64      `json:"scale"`
	Rows     int          `json:"rows"`
	Columns  int          `json:"columns"`
	CellSize pyramid.Size `json:"cell_size"`
	Loaded   int          `json:"loaded"`
	Softened int          `json:"softened"`
	Loading  int          `json:"loading"`
}

// Levels describes every registered level in ascending scale order.
func (v *View) Levels() []LevelInfo {
	levels := v.index.Levels()
	out := make([]LevelInfo, 0, len(levels))
	for _, l := range levels {
		info := LevelInfo{Scale: l.Scale, Rows: l.Rows, Columns: l.Columns, CellSize: l.CellSize}
		for tile := range l.Tiles() {
			switch tile.State() {
			case pyramid.Loaded:
				info.Loaded++
			case pyramid.Softened:
				info.Softened++
			}
			if tile.Handle() != 0 {
				info.Loading++
			}
		}
		out = append(out, info)
	}
	return out
}

// State summarizes the view for diagnostics.
type State struct {
	Base          pyramid.Size     `json:"base"`
	Viewport      pyramid.Viewport `json:"viewport"`
	Zoom          float64          `json:"zoom"`
	Levels        int              `json:"levels"`
	Current       float64          `json:"current_scale,omitempty"`
	Previous      float64          `json:"previous_scale,omitempty"`
	Transition    string           `json:"transition"`
	UpdatePending bool             `json:"update_pending"`
	Updates       int              `json:"updates"`
	Generation    uint64           `json:"generation"`
	Loads         loader.Stats     `json:"loads"`
}

// State returns a diagnostic snapshot.
func (v *View) State() State {
	s := State{
		Base:          v.base,
		Viewport:      v.Viewport(),
		Zoom:          v.zoom,
		Levels:        v.index.Len(),
		Transition:    v.trans.State().String(),
		UpdatePending: v.debounce.Pending(),
		Updates:       v.updates,
		Generation:    v.generation,
		Loads:         v.sched.Stats(),
	}
	if l := v.trans.Current(); l != nil {
		s.Current = l.Scale
	}
	if l := v.trans.Previous(); l != nil {
		s.Previous = l.Scale
	}
	return s
}

// Transition exposes the level transition controller.
func (v *View) Transition() *Transition { return v.trans }
