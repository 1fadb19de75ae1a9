// Package render composites tile view frames using fogleman/gg.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/atlasmap-sc/tileview/internal/tileview"
)

// Config contains compositor configuration.
type Config struct {
	Background color.Color
	// Debug outlines every drawn tile.
	Debug bool
}

// Compositor paints frames onto an RGBA surface.
type Compositor struct {
	config     Config
	bufferPool sync.Pool
}

// NewCompositor creates a new compositor.
func NewCompositor(cfg Config) *Compositor {
	if cfg.Background == nil {
		cfg.Background = color.Black
	}
	return &Compositor{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// Draw paints frame into a new surface the size of its viewport. It reads
// the frame's bitmaps, so it must run before the owning loop releases them.
func (c *Compositor) Draw(frame tileview.Frame) image.Image {
	w, h := frame.Viewport.Width, frame.Viewport.Height
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(c.config.Background)
	dc.Clear()

	// Content is centered when it is smaller than the viewport.
	scaledW := float64(frame.Base.Width) * frame.Zoom
	scaledH := float64(frame.Base.Height) * frame.Zoom
	dc.Translate(max(0, float64(w)/2-scaledW/2), max(0, float64(h)/2-scaledH/2))
	dc.Translate(-float64(frame.Viewport.X), -float64(frame.Viewport.Y))
	dc.Scale(frame.Zoom, frame.Zoom)

	if frame.Preview != nil && frame.PreviewSrc.Dx() > 0 && frame.PreviewSrc.Dy() > 0 {
		dc.Push()
		dc.Scale(
			float64(frame.Base.Width)/float64(frame.PreviewSrc.Dx()),
			float64(frame.Base.Height)/float64(frame.PreviewSrc.Dy()),
		)
		dc.DrawImage(frame.Preview, -frame.PreviewSrc.Left, -frame.PreviewSrc.Top)
		dc.Pop()
	}

	for _, t := range frame.Tiles {
		if t.Bitmap != nil {
			c.drawTile(dc, t)
		}
		if c.config.Debug {
			c.drawDebug(dc, t, frame.Zoom)
		}
	}

	return dc.Image()
}

// drawTile maps the tile's pixels (one per 1/scale base pixels) onto its rect.
func (c *Compositor) drawTile(dc *gg.Context, t tileview.DrawTile) {
	b := t.Bitmap.Bounds()
	dc.Push()
	dc.DrawRectangle(float64(t.Rect.Left), float64(t.Rect.Top), float64(t.Rect.Dx()), float64(t.Rect.Dy()))
	dc.Clip()
	dc.Translate(float64(t.Rect.Left), float64(t.Rect.Top))
	dc.Scale(1/t.Scale, 1/t.Scale)
	dc.DrawImage(t.Bitmap, -b.Min.X, -b.Min.Y)
	dc.ResetClip()
	dc.Pop()
}

func (c *Compositor) drawDebug(dc *gg.Context, t tileview.DrawTile, zoom float64) {
	dc.Push()
	dc.SetRGB(0, 1, 0)
	dc.SetLineWidth(1 / zoom)
	dc.DrawRectangle(float64(t.Rect.Left), float64(t.Rect.Top), float64(t.Rect.Dx()), float64(t.Rect.Dy()))
	dc.Stroke()
	dc.Pop()
}

// EncodePNG encodes img with the fast PNG encoder.
func (c *Compositor) EncodePNG(img image.Image) ([]byte, error) {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		c.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
