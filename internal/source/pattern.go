package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/atlasmap-sc/tileview/internal/pyramid"
	"github.com/atlasmap-sc/tileview/pkg/colormap"
)

// PatternConfig contains pattern source configuration.
type PatternConfig struct {
	Base     pyramid.Size
	TileSize pyramid.Size
	Colormap colormap.Colormap
	// Latency delays every fetch, to mimic a slow backend.
	Latency time.Duration
	Alloc   Allocator
}

// Pattern generates labelled tiles colored by their position in the base
// image, so neighbouring tiles of every level line up.
type Pattern struct {
	cfg PatternConfig
}

// NewPattern creates a pattern source.
func NewPattern(cfg PatternConfig) (*Pattern, error) {
	if cfg.Base.Width <= 0 || cfg.Base.Height <= 0 {
		return nil, fmt.Errorf("pattern base %dx%d must be positive", cfg.Base.Width, cfg.Base.Height)
	}
	if cfg.TileSize.Width <= 0 || cfg.TileSize.Height <= 0 {
		return nil, fmt.Errorf("pattern tile size %dx%d must be positive", cfg.TileSize.Width, cfg.TileSize.Height)
	}
	if cfg.Colormap == nil {
		cfg.Colormap = colormap.Viridis
	}
	if cfg.Alloc == nil {
		cfg.Alloc = newAllocator{}
	}
	return &Pattern{cfg: cfg}, nil
}

func (p *Pattern) Name() string { return "pattern" }

// tileRect returns the base image rect of a tile, or false when it lies
// outside the grid.
func (p *Pattern) tileRect(scale float64, row, column int) (pyramid.Rect, bool) {
	cellW := int(float64(p.cfg.TileSize.Width) / scale)
	cellH := int(float64(p.cfg.TileSize.Height) / scale)
	if cellW <= 0 || cellH <= 0 || row < 0 || column < 0 {
		return pyramid.Rect{}, false
	}
	r := pyramid.Rect{Left: column * cellW, Top: row * cellH}
	if r.Left >= p.cfg.Base.Width || r.Top >= p.cfg.Base.Height {
		return pyramid.Rect{}, false
	}
	r.Right = min(r.Left+cellW, p.cfg.Base.Width)
	r.Bottom = min(r.Top+cellH, p.cfg.Base.Height)
	return r, true
}

// Fetch draws the tile at scale/row/column.
func (p *Pattern) Fetch(ctx context.Context, scale float64, row, column int) (image.Image, error) {
	if p.cfg.Latency > 0 {
		t := time.NewTimer(p.cfg.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownScale, scale)
	}

	rect, ok := p.tileRect(scale, row, column)
	if !ok {
		return nil, nil
	}
	w := min(int(math.Ceil(float64(rect.Dx())*scale)), p.cfg.TileSize.Width)
	h := min(int(math.Ceil(float64(rect.Dy())*scale)), p.cfg.TileSize.Height)

	dc := gg.NewContextForRGBA(p.cfg.Alloc.Get(w, h))
	centerX := float64(rect.Left+rect.Right) / 2
	dc.SetColor(p.cfg.Colormap.At(centerX / float64(p.cfg.Base.Width)))
	dc.Clear()

	dc.SetColor(color.White)
	dc.SetLineWidth(1)
	dc.DrawRectangle(0.5, 0.5, float64(w)-1, float64(h)-1)
	dc.Stroke()
	dc.DrawStringAnchored(fmt.Sprintf("%s %d,%d", formatScale(scale), row, column), float64(w)/2, float64(h)/2, 0.5, 0.5)

	return dc.Image(), nil
}

func (p *Pattern) Close() error { return nil }
