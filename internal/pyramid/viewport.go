package pyramid

import "math"

// Viewport is the visible rectangle in zoomed pixel space: the scroll offset
// and visible size of the host surface.
type Viewport struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (v Viewport) Left() int   { return v.X }
func (v Viewport) Top() int    { return v.Y }
func (v Viewport) Right() int  { return v.X + v.Width }
func (v Viewport) Bottom() int { return v.Y + v.Height }

// Range is an inclusive row/column range of a DetailLevel. A range whose end
// precedes its start is empty.
type Range struct {
	RowStart    int
	RowEnd      int
	ColumnStart int
	ColumnEnd   int
}

// Empty reports whether r contains no tiles.
func (r Range) Empty() bool {
	return r.RowEnd < r.RowStart || r.ColumnEnd < r.ColumnStart
}

// Contains reports whether row/column lies within r.
func (r Range) Contains(row, column int) bool {
	return row >= r.RowStart && row <= r.RowEnd && column >= r.ColumnStart && column <= r.ColumnEnd
}

// Len returns the number of tiles in r.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return (r.RowEnd - r.RowStart + 1) * (r.ColumnEnd - r.ColumnStart + 1)
}

var emptyRange = Range{RowStart: 0, RowEnd: -1, ColumnStart: 0, ColumnEnd: -1}

// VisibleRange maps a viewport at zoom to the tiles of l it overlaps.
// Starts are clamped to the grid so that negative scroll offsets stay in range.
func VisibleRange(l *DetailLevel, vp Viewport, zoom float64) Range {
	if zoom <= 0 || l.Rows == 0 || l.Columns == 0 {
		return emptyRange
	}
	cellH := float64(l.CellSize.Height) * zoom
	cellW := float64(l.CellSize.Width) * zoom

	r := Range{
		RowStart:    cellIndex(vp.Top(), cellH, l.Rows),
		RowEnd:      min(cellIndex(vp.Bottom(), cellH, l.Rows), l.Rows-1),
		ColumnStart: cellIndex(vp.Left(), cellW, l.Columns),
		ColumnEnd:   min(cellIndex(vp.Right(), cellW, l.Columns), l.Columns-1),
	}
	r.RowStart = max(r.RowStart, 0)
	r.ColumnStart = max(r.ColumnStart, 0)
	if r.Empty() {
		return emptyRange
	}
	return r
}

// cellIndex floors pos/cell, clamped to [-1, n] before the int conversion so
// that tiny zooms cannot overflow it.
func cellIndex(pos int, cell float64, n int) int {
	q := math.Floor(float64(pos) / cell)
	if math.IsNaN(q) {
		return 0
	}
	return int(math.Max(-1, math.Min(q, float64(n))))
}
