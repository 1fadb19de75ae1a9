package pyramid

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidLevel is returned when a detail level cannot be built.
var ErrInvalidLevel = errors.New("pyramid: invalid detail level")

// DetailLevel is a row-major grid of tiles covering the base image at one scale.
type DetailLevel struct {
	Scale   float64
	Rows    int
	Columns int
	// CellSize is the tile cell size in base image pixels (tile size / scale).
	CellSize Size

	tiles [][]*Tile
}

// NewDetailLevel builds the tile grid for scale over a base image of
// baseWidth x baseHeight pixels, with tiles of cell pixels at that scale.
func NewDetailLevel(scale float64, baseWidth, baseHeight int, cell Size) (*DetailLevel, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale %g must be positive", ErrInvalidLevel, scale)
	}
	if baseWidth <= 0 || baseHeight <= 0 {
		return nil, fmt.Errorf("%w: base bounds %dx%d must be positive", ErrInvalidLevel, baseWidth, baseHeight)
	}

	// Truncating, like the pixel grid of the source tiles.
	scaled := Size{
		Width:  int(float64(cell.Width) / scale),
		Height: int(float64(cell.Height) / scale),
	}
	if scaled.Width <= 0 || scaled.Height <= 0 {
		return nil, fmt.Errorf("%w: cell %dx%d at scale %g is empty", ErrInvalidLevel, cell.Width, cell.Height, scale)
	}

	columns := ceilDiv(baseWidth, scaled.Width)
	rows := ceilDiv(baseHeight, scaled.Height)

	tiles := make([][]*Tile, rows)
	for row := 0; row < rows; row++ {
		tiles[row] = make([]*Tile, columns)
		for column := 0; column < columns; column++ {
			left := column * scaled.Width
			top := row * scaled.Height
			tiles[row][column] = &Tile{
				Scale:  scale,
				Row:    row,
				Column: column,
				Rect: Rect{
					Left:   left,
					Top:    top,
					Right:  min(left+scaled.Width, baseWidth),
					Bottom: min(top+scaled.Height, baseHeight),
				},
			}
		}
	}

	return &DetailLevel{
		Scale:    scale,
		Rows:     rows,
		Columns:  columns,
		CellSize: scaled,
		tiles:    tiles,
	}, nil
}

// Tile returns the tile at row/column, or nil when out of the grid.
func (l *DetailLevel) Tile(row, column int) *Tile {
	if row < 0 || row >= l.Rows || column < 0 || column >= l.Columns {
		return nil
	}
	return l.tiles[row][column]
}

// Tiles iterates over every tile in row-major order.
func (l *DetailLevel) Tiles() iter.Seq[*Tile] {
	return func(yield func(*Tile) bool) {
		for _, row := range l.tiles {
			for _, t := range row {
				if !yield(t) {
					return
				}
			}
		}
	}
}

// TilesIn iterates over the tiles of r in row-major order.
func (l *DetailLevel) TilesIn(r Range) iter.Seq[*Tile] {
	return func(yield func(*Tile) bool) {
		for row := r.RowStart; row <= r.RowEnd; row++ {
			for column := r.ColumnStart; column <= r.ColumnEnd; column++ {
				if !yield(l.tiles[row][column]) {
					return
				}
			}
		}
	}
}

// Classify iterates over every tile and reports whether it lies within r.
func (l *DetailLevel) Classify(r Range) iter.Seq2[*Tile, bool] {
	return func(yield func(*Tile, bool) bool) {
		for _, row := range l.tiles {
			for _, t := range row {
				if !yield(t, r.Contains(t.Row, t.Column)) {
					return
				}
			}
		}
	}
}

func (l *DetailLevel) String() string {
	return fmt.Sprintf("DetailLevel(scale: %g, %dx%d)", l.Scale, l.Rows, l.Columns)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
