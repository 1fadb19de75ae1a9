// Package pyramid provides the tile grid model of a multi-resolution image:
// tiles, detail levels, the scale index and the viewport mapper.
//
// Nothing in this package is safe for concurrent mutation. Tile state is owned
// by a single goroutine (see package loop); workers may only read the
// immutable geometry fields.
package pyramid

import (
	"fmt"
	"image"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a pixel rectangle with exclusive Right and Bottom edges.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Dx returns the rectangle width.
func (r Rect) Dx() int { return r.Right - r.Left }

// Dy returns the rectangle height.
func (r Rect) Dy() int { return r.Bottom - r.Top }

// BitmapState is the lifetime state of a tile's pixel buffer.
type BitmapState uint8

const (
	// Empty means the tile holds no pixels.
	Empty BitmapState = iota
	// Loaded means the tile owns its pixels.
	Loaded
	// Softened means the pixels are kept for drawing but may be reclaimed.
	Softened
)

func (s BitmapState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	case Softened:
		return "softened"
	default:
		return fmt.Sprintf("BitmapState(%d)", uint8(s))
	}
}

// LoadHandle identifies one in-flight load. The zero value means no load.
type LoadHandle uint64

// Tile is one grid cell of a DetailLevel.
type Tile struct {
	Scale  float64
	Row    int
	Column int
	// Rect is the cell's region in base image pixels, clipped to the base bounds.
	Rect Rect

	state  BitmapState
	bitmap image.Image
	handle LoadHandle
}

func (t *Tile) String() string {
	return fmt.Sprintf("Tile(scale: %g, row: %d, column: %d)", t.Scale, t.Row, t.Column)
}

// State returns the bitmap lifetime state.
func (t *Tile) State() BitmapState { return t.state }

// Bitmap returns the pixels of a Loaded or Softened tile, nil otherwise.
func (t *Tile) Bitmap() image.Image { return t.bitmap }

// Handle returns the in-flight load handle, zero if none.
func (t *Tile) Handle() LoadHandle { return t.handle }

// SetHandle replaces the in-flight load handle.
func (t *Tile) SetHandle(h LoadHandle) { t.handle = h }

// SetLoaded stores img as the tile's owned pixels. A nil img empties the tile.
func (t *Tile) SetLoaded(img image.Image) {
	if img == nil {
		t.state, t.bitmap = Empty, nil
		return
	}
	t.state, t.bitmap = Loaded, img
}

// Soften marks Loaded pixels as reclaimable. It reports whether the state changed.
func (t *Tile) Soften() bool {
	if t.state != Loaded {
		return false
	}
	t.state = Softened
	return true
}

// Release empties the tile and returns the pixels it held, if any.
func (t *Tile) Release() image.Image {
	img := t.bitmap
	t.state, t.bitmap = Empty, nil
	return img
}
