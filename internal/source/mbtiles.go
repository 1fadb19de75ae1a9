package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	_ "modernc.org/sqlite"
)

// MBTilesConfig contains MBTiles reader configuration.
type MBTilesConfig struct {
	Path string
	// MaxZoom is the zoom level holding scale 1 tiles. A negative value
	// reads it from the "maxzoom" metadata entry.
	MaxZoom int
	// FlipY converts rows to the TMS numbering used by the MBTiles format.
	FlipY bool
}

// MBTilesReader reads tiles from an MBTiles database. Scale 1 maps to MaxZoom
// and every halving of scale maps to one zoom level less.
type MBTilesReader struct {
	db      *sql.DB
	stmt    *sql.Stmt
	maxZoom int
	flipY   bool
}

// NewMBTilesReader opens the database read-only.
//
// The returned reader must be closed after use to release database resources.
func NewMBTilesReader(cfg MBTilesConfig) (*MBTilesReader, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open mbtiles: %w", err)
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare tile query: %w", err)
	}

	r := &MBTilesReader{db: db, stmt: stmt, maxZoom: cfg.MaxZoom, flipY: cfg.FlipY}
	if r.maxZoom < 0 {
		meta, err := r.ReadMetadata(context.Background())
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to read mbtiles metadata: %w", err)
		}
		z, err := strconv.Atoi(meta["maxzoom"])
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("invalid maxzoom metadata %q: %w", meta["maxzoom"], err)
		}
		r.maxZoom = z
	}
	return r, nil
}

// Zoom returns the zoom level storing tiles of scale.
func (r *MBTilesReader) Zoom(scale float64) (int, error) {
	if scale <= 0 || scale > 1 {
		return 0, fmt.Errorf("%w: %v", ErrUnknownScale, scale)
	}
	exp := math.Log2(scale)
	if math.Abs(exp-math.Round(exp)) > 1e-9 {
		return 0, fmt.Errorf("%w: %v is not a power of two", ErrUnknownScale, scale)
	}
	z := r.maxZoom + int(math.Round(exp))
	if z < 0 {
		return 0, fmt.Errorf("%w: %v is below zoom 0", ErrUnknownScale, scale)
	}
	return z, nil
}

// ReadMetadata returns the metadata table.
func (r *MBTilesReader) ReadMetadata(ctx context.Context) (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := r.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

// ReadTile reads the blob of a tile. A missing row yields empty data.
func (r *MBTilesReader) ReadTile(ctx context.Context, scale float64, row, column int) ([]byte, error) {
	z, err := r.Zoom(scale)
	if err != nil {
		return nil, err
	}
	if r.flipY {
		row = (1 << z) - 1 - row
	}

	var data []byte
	if err := r.stmt.QueryRowContext(ctx, z, column, row).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Close closes the statement and the database.
func (r *MBTilesReader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}
