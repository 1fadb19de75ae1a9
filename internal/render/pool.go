package render

import (
	"image"
	"sync"
)

// BitmapPool recycles RGBA pixel storage of one tile size.
// It is safe for concurrent use.
type BitmapPool struct {
	width  int
	height int
	pool   sync.Pool
}

// NewBitmapPool creates a pool of width x height RGBA bitmaps.
func NewBitmapPool(width, height int) *BitmapPool {
	p := &BitmapPool{width: width, height: height}
	p.pool.New = func() interface{} {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return p
}

// Get returns a bitmap of at least the requested size, cropped to it.
// Its pixels are not cleared.
func (p *BitmapPool) Get(width, height int) *image.RGBA {
	if width > p.width || height > p.height {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	img := p.pool.Get().(*image.RGBA)
	return img.SubImage(image.Rect(0, 0, width, height)).(*image.RGBA)
}

// Recycle returns img's storage to the pool when it came from it.
func (p *BitmapPool) Recycle(img image.Image) {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*p.width || len(rgba.Pix) < 4*p.width*p.height {
		return
	}
	// A cropped bitmap shares storage with the full one.
	full := &image.RGBA{
		Pix:    rgba.Pix[:4*p.width*p.height:4*p.width*p.height],
		Stride: rgba.Stride,
		Rect:   image.Rect(0, 0, p.width, p.height),
	}
	p.pool.Put(full)
}
