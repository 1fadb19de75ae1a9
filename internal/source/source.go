// Package source provides tile sources for the loader: files laid out by a
// path pattern, MBTiles databases, and generated test patterns.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	// Registered image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/klauspost/compress/zstd"

	"github.com/atlasmap-sc/tileview/internal/cache"
)

var (
	ErrInvalidPattern = errors.New("source: invalid file pattern")
	ErrUnknownScale   = errors.New("source: no zoom level for scale")
	ErrUnknownKind    = errors.New("source: unknown source kind")
)

// Source fetches tile bitmaps. A nil image with a nil error means the
// source has no tile at that position.
type Source interface {
	Fetch(ctx context.Context, scale float64, row, column int) (image.Image, error)
	Name() string
	Close() error
}

// Reader reads encoded tile bytes. Empty data with a nil error means the
// tile does not exist.
type Reader interface {
	ReadTile(ctx context.Context, scale float64, row, column int) ([]byte, error)
	Close() error
}

// Allocator hands out RGBA bitmaps for decoded tiles.
type Allocator interface {
	Get(width, height int) *image.RGBA
}

type newAllocator struct{}

func (newAllocator) Get(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Decoder turns encoded tile bytes into RGBA bitmaps. It accepts PNG, JPEG, GIF,
// WebP, BMP and TIFF data, optionally wrapped in a zstd frame.
type Decoder struct {
	zstd  *zstd.Decoder
	alloc Allocator
}

// NewDecoder creates a decoder drawing into bitmaps from alloc. A nil alloc
// allocates a new bitmap per tile.
func NewDecoder(alloc Allocator) (*Decoder, error) {
	zd, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if alloc == nil {
		alloc = newAllocator{}
	}
	return &Decoder{zstd: zd, alloc: alloc}, nil
}

// Decode decodes data into a bitmap anchored at the origin.
func (d *Decoder) Decode(data []byte) (*image.RGBA, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := d.zstd.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress failed: %w", err)
		}
		data = raw
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile: %w", err)
	}

	b := src.Bounds()
	dst := d.alloc.Get(b.Dx(), b.Dy())
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// Close releases the zstd decoder.
func (d *Decoder) Close() {
	d.zstd.Close()
}

// Cached fetches tiles from a Reader through the tile cache and decodes them.
type Cached struct {
	name    string
	reader  Reader
	cache   *cache.Manager
	decoder *Decoder
	verbose bool
}

// NewCached wraps reader. A nil cache reads through on every fetch.
func NewCached(name string, reader Reader, c *cache.Manager, alloc Allocator, verbose bool) (*Cached, error) {
	dec, err := NewDecoder(alloc)
	if err != nil {
		return nil, err
	}
	return &Cached{name: name, reader: reader, cache: c, decoder: dec, verbose: verbose}, nil
}

// Name returns the source name used in cache keys.
func (s *Cached) Name() string { return s.name }

// Fetch returns the decoded tile at scale/row/column.
func (s *Cached) Fetch(ctx context.Context, scale float64, row, column int) (image.Image, error) {
	data, err := s.read(ctx, scale, row, column)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := s.decoder.Decode(data)
	if err != nil {
		// Undecodable bytes are not kept, so a fixed file is picked up on the next load.
		if s.cache != nil {
			s.cache.Invalidate(cache.TileKey(s.name, scale, row, column))
		}
		return nil, fmt.Errorf("tile %v/%d/%d: %w", scale, row, column, err)
	}
	return img, nil
}

func (s *Cached) read(ctx context.Context, scale float64, row, column int) ([]byte, error) {
	if s.cache == nil {
		return s.reader.ReadTile(ctx, scale, row, column)
	}

	key := cache.TileKey(s.name, scale, row, column)
	if s.cache.IsMissing(key) {
		return nil, nil
	}
	if data, ok := s.cache.GetTile(key); ok {
		return data, nil
	}

	start := time.Now()
	data, err := s.reader.ReadTile(ctx, scale, row, column)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		s.cache.MarkMissing(key)
		return nil, nil
	}
	if err := s.cache.SetTile(key, data); err != nil {
		log.Printf("[Source] %s: not caching %s: %v", s.name, key, err)
	}
	if s.verbose {
		log.Printf("[Source] %s: read %s (%d bytes) in %v", s.name, key, len(data), time.Since(start))
	}
	return data, nil
}

// Close closes the underlying reader.
func (s *Cached) Close() error {
	s.decoder.Close()
	return s.reader.Close()
}
