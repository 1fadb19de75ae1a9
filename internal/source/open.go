package source

import (
	"fmt"
	"time"

	"github.com/atlasmap-sc/tileview/internal/cache"
	"github.com/atlasmap-sc/tileview/internal/pyramid"
	"github.com/atlasmap-sc/tileview/pkg/colormap"
)

// Source kinds.
const (
	KindDir     = "dir"
	KindMBTiles = "mbtiles"
	KindPattern = "pattern"
)

// Options selects and configures a source.
type Options struct {
	Kind     string
	Name     string
	Pattern  string
	Path     string
	MaxZoom  int
	FlipY    bool
	Colormap string
	Latency  time.Duration
	Base     pyramid.Size
	TileSize pyramid.Size
	Verbose  bool
}

// Open creates the source described by opts. Decoded and generated tiles
// draw into bitmaps from alloc; dir and mbtiles sources read through c.
func Open(opts Options, c *cache.Manager, alloc Allocator) (Source, error) {
	name := opts.Name
	if name == "" {
		name = opts.Kind
	}

	switch opts.Kind {
	case KindDir:
		r, err := NewDirReader(opts.Pattern)
		if err != nil {
			return nil, err
		}
		s, err := NewCached(name, r, c, alloc, opts.Verbose)
		if err != nil {
			return nil, err
		}
		return s, nil

	case KindMBTiles:
		r, err := NewMBTilesReader(MBTilesConfig{Path: opts.Path, MaxZoom: opts.MaxZoom, FlipY: opts.FlipY})
		if err != nil {
			return nil, err
		}
		s, err := NewCached(name, r, c, alloc, opts.Verbose)
		if err != nil {
			r.Close()
			return nil, err
		}
		return s, nil

	case KindPattern:
		cfg := PatternConfig{Base: opts.Base, TileSize: opts.TileSize, Latency: opts.Latency, Alloc: alloc}
		if opts.Colormap != "" {
			cm, ok := colormap.Get(opts.Colormap)
			if !ok {
				return nil, fmt.Errorf("unknown colormap %q", opts.Colormap)
			}
			cfg.Colormap = cm
		}
		p, err := NewPattern(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
}
