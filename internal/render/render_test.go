package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/atlasmap-sc/tileview/internal/pyramid"
	"github.com/atlasmap-sc/tileview/internal/tileview"
)

func filled(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func rgbaAt(t *testing.T, img image.Image, x, y int) color.RGBA {
	t.Helper()
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestCompositor_Draw(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	c := NewCompositor(Config{Background: color.White})

	frame := tileview.Frame{
		Viewport: pyramid.Viewport{X: 0, Y: 0, Width: 200, Height: 100},
		Zoom:     1,
		Base:     pyramid.Size{Width: 1024, Height: 1024},
		Tiles: []tileview.DrawTile{
			{Scale: 1, Row: 0, Column: 0, Rect: pyramid.Rect{Right: 100, Bottom: 100}, Bitmap: filled(100, 100, red)},
			// Half scale: a 50px bitmap covers 100 base pixels.
			{Scale: 0.5, Row: 0, Column: 1, Rect: pyramid.Rect{Left: 100, Right: 200, Bottom: 100}, Bitmap: filled(50, 50, blue)},
		},
	}

	img := c.Draw(frame)
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("expected 200x100 surface, got %v", b)
	}
	if got := rgbaAt(t, img, 50, 50); got != red {
		t.Errorf("expected red at 50,50, got %v", got)
	}
	if got := rgbaAt(t, img, 190, 90); got != blue {
		t.Errorf("expected scaled blue tile at 190,90, got %v", got)
	}
}

func TestCompositor_EmptyTilesShowBackground(t *testing.T) {
	c := NewCompositor(Config{Background: color.White})
	frame := tileview.Frame{
		Viewport: pyramid.Viewport{Width: 64, Height: 64},
		Zoom:     1,
		Base:     pyramid.Size{Width: 64, Height: 64},
		Tiles:    []tileview.DrawTile{{Scale: 1, Rect: pyramid.Rect{Right: 64, Bottom: 64}}},
	}

	img := c.Draw(frame)
	if got := rgbaAt(t, img, 10, 10); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("expected background, got %v", got)
	}
}

func TestCompositor_PreviewAndCentering(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}
	c := NewCompositor(Config{})
	frame := tileview.Frame{
		Viewport:   pyramid.Viewport{Width: 100, Height: 100},
		Zoom:       0.5,
		Base:       pyramid.Size{Width: 100, Height: 100},
		Preview:    filled(10, 10, green),
		PreviewSrc: pyramid.Rect{Right: 10, Bottom: 10},
	}

	img := c.Draw(frame)
	// 100px base at zoom 0.5 is 50px wide, centered with a 25px margin.
	if got := rgbaAt(t, img, 50, 50); got != green {
		t.Errorf("expected preview at center, got %v", got)
	}
	if got := rgbaAt(t, img, 5, 5); got != (color.RGBA{A: 255}) {
		t.Errorf("expected black margin, got %v", got)
	}
}

func TestCompositor_EncodePNG(t *testing.T) {
	c := NewCompositor(Config{})
	data, err := c.EncodePNG(filled(8, 8, color.White))
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("expected 8px wide image, got %d", img.Bounds().Dx())
	}
}

func TestBitmapPool(t *testing.T) {
	p := NewBitmapPool(16, 16)

	img := p.Get(16, 8)
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("expected 16x8 bitmap, got %v", b)
	}
	p.Recycle(img)

	again := p.Get(16, 16)
	if b := again.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("expected 16x16 bitmap, got %v", b)
	}

	big := p.Get(32, 32)
	if b := big.Bounds(); b.Dx() != 32 {
		t.Fatalf("expected oversized bitmap to be allocated, got %v", b)
	}
	// Foreign sizes are ignored.
	p.Recycle(big)
	p.Recycle(image.NewGray(image.Rect(0, 0, 16, 16)))
}
