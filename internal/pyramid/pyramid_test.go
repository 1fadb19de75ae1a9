package pyramid

import (
	"errors"
	"image"
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustLevel(t *testing.T, scale float64, w, h int, cell Size) *DetailLevel {
	t.Helper()
	l, err := NewDetailLevel(scale, w, h, cell)
	if err != nil {
		t.Fatalf("NewDetailLevel(%g) failed: %v", scale, err)
	}
	return l
}

func TestNewDetailLevel_Coverage(t *testing.T) {
	l := mustLevel(t, 1.0, 1000, 700, Size{Width: 300, Height: 300})

	if l.Columns != 4 || l.Rows != 3 {
		t.Fatalf("expected 3x4 grid, got %dx%d", l.Rows, l.Columns)
	}

	last := l.Tile(0, 3)
	if got, want := last.Rect, (Rect{Left: 900, Top: 0, Right: 1000, Bottom: 300}); !cmp.Equal(got, want) {
		t.Errorf("last column rect mismatch (-got +want):\n%s", cmp.Diff(got, want))
	}

	corner := l.Tile(2, 3)
	if got, want := corner.Rect, (Rect{Left: 900, Top: 600, Right: 1000, Bottom: 700}); !cmp.Equal(got, want) {
		t.Errorf("corner rect mismatch (-got +want):\n%s", cmp.Diff(got, want))
	}

	area := 0
	covered := make([]bool, 1000*700)
	for tile := range l.Tiles() {
		area += tile.Rect.Dx() * tile.Rect.Dy()
		for y := tile.Rect.Top; y < tile.Rect.Bottom; y += 50 {
			for x := tile.Rect.Left; x < tile.Rect.Right; x += 50 {
				if covered[y*1000+x] {
					t.Fatalf("pixel %d,%d covered twice", x, y)
				}
				covered[y*1000+x] = true
			}
		}
	}
	if area != 1000*700 {
		t.Errorf("expected tiles to cover %d pixels, got %d", 1000*700, area)
	}
}

func TestNewDetailLevel_ScaledCell(t *testing.T) {
	l := mustLevel(t, 0.25, 4096, 2048, Size{Width: 256, Height: 256})

	if got, want := l.CellSize, (Size{Width: 1024, Height: 1024}); got != want {
		t.Fatalf("expected scaled cell %v, got %v", want, got)
	}
	if l.Rows != 2 || l.Columns != 4 {
		t.Errorf("expected 2x4 grid, got %dx%d", l.Rows, l.Columns)
	}

	// 256 / 0.3 = 853.33 truncates to 853.
	l = mustLevel(t, 0.3, 1000, 1000, Size{Width: 256, Height: 256})
	if l.CellSize.Width != 853 || l.Columns != 2 {
		t.Errorf("expected truncated cell 853 and 2 columns, got %d and %d", l.CellSize.Width, l.Columns)
	}
	if l.Tile(0, 1).Rect.Right != 1000 {
		t.Errorf("expected clipped right edge 1000, got %d", l.Tile(0, 1).Rect.Right)
	}
}

func TestNewDetailLevel_Invalid(t *testing.T) {
	for name, tc := range map[string]struct {
		scale float64
		w, h  int
		cell  Size
	}{
		"zeroScale":   {0, 100, 100, Size{256, 256}},
		"negative":    {-1, 100, 100, Size{256, 256}},
		"emptyBounds": {1, 0, 100, Size{256, 256}},
		"emptyCell":   {512, 100, 100, Size{256, 256}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewDetailLevel(tc.scale, tc.w, tc.h, tc.cell)
			if !errors.Is(err, ErrInvalidLevel) {
				t.Fatalf("expected ErrInvalidLevel, got %v", err)
			}
		})
	}
}

func TestScaleIndex_Select(t *testing.T) {
	var x ScaleIndex
	for _, s := range []float64{1.0, 0.25, 0.5} {
		x.Add(mustLevel(t, s, 1024, 1024, Size{256, 256}))
	}

	for _, tc := range []struct {
		target  float64
		density float64
		want    float64
	}{
		{0.3, 1, 0.5},
		{1.5, 1, 1.0},
		{0.1, 1, 0.25},
		{0.25, 1, 0.25},
		{0.5, 1, 0.5},
		{0.6, 2, 0.5},
		{0.3, 0.5, 1.0},
	} {
		l, err := x.Select(tc.target, tc.density)
		if err != nil {
			t.Fatalf("Select(%g, %g) failed: %v", tc.target, tc.density, err)
		}
		if l.Scale != tc.want {
			t.Errorf("Select(%g, %g) = %g, want %g", tc.target, tc.density, l.Scale, tc.want)
		}
	}

	var scales []float64
	for _, l := range x.Levels() {
		scales = append(scales, l.Scale)
	}
	if diff := cmp.Diff([]float64{0.25, 0.5, 1.0}, scales); diff != "" {
		t.Errorf("levels not ascending (-want +got):\n%s", diff)
	}
}

func TestScaleIndex_Empty(t *testing.T) {
	var x ScaleIndex
	if _, err := x.Select(1, 1); !errors.Is(err, ErrNoLevels) {
		t.Fatalf("expected ErrNoLevels, got %v", err)
	}
}

func TestScaleIndex_DuplicateOverwrites(t *testing.T) {
	var x ScaleIndex
	first := mustLevel(t, 0.5, 1024, 1024, Size{256, 256})
	second := mustLevel(t, 0.5, 1024, 1024, Size{128, 128})

	if replaced := x.Add(first); replaced != nil {
		t.Fatalf("unexpected replaced level %v", replaced)
	}
	if replaced := x.Add(second); replaced != first {
		t.Fatalf("expected first level to be replaced, got %v", replaced)
	}
	if x.Len() != 1 {
		t.Fatalf("expected 1 level, got %d", x.Len())
	}
	if l, _ := x.Select(0.5, 1); l != second {
		t.Errorf("expected replacement to be selected")
	}
}

func TestVisibleRange(t *testing.T) {
	l := mustLevel(t, 1.0, 1024, 1024, Size{256, 256})

	t.Run("zoomed", func(t *testing.T) {
		r := VisibleRange(l, Viewport{X: 0, Y: 300, Width: 100, Height: 500}, 2.0)
		if r.RowStart != 0 || r.RowEnd != 1 {
			t.Fatalf("expected rows 0..1, got %d..%d", r.RowStart, r.RowEnd)
		}
		if r.ColumnStart != 0 || r.ColumnEnd != 0 {
			t.Fatalf("expected column 0..0, got %d..%d", r.ColumnStart, r.ColumnEnd)
		}
	})

	t.Run("clampedEnd", func(t *testing.T) {
		r := VisibleRange(l, Viewport{X: 500, Y: 500, Width: 5000, Height: 5000}, 1.0)
		want := Range{RowStart: 1, RowEnd: 3, ColumnStart: 1, ColumnEnd: 3}
		if diff := cmp.Diff(want, r); diff != "" {
			t.Fatalf("range mismatch (-want +got):\n%s", diff)
		}
		if r.Len() != 9 {
			t.Errorf("expected 9 tiles, got %d", r.Len())
		}
	})

	t.Run("negativeScroll", func(t *testing.T) {
		r := VisibleRange(l, Viewport{X: -100, Y: -100, Width: 300, Height: 300}, 1.0)
		want := Range{RowStart: 0, RowEnd: 0, ColumnStart: 0, ColumnEnd: 0}
		if diff := cmp.Diff(want, r); diff != "" {
			t.Fatalf("range mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("outside", func(t *testing.T) {
		r := VisibleRange(l, Viewport{X: 5000, Y: 0, Width: 100, Height: 100}, 1.0)
		if !r.Empty() || r.Len() != 0 {
			t.Fatalf("expected empty range, got %+v", r)
		}
		if n := countSeq(l.TilesIn(r)); n != 0 {
			t.Errorf("expected no visible tiles, got %d", n)
		}
	})

	t.Run("tinyZoom", func(t *testing.T) {
		r := VisibleRange(l, Viewport{Width: 300, Height: 300}, 1e-320)
		want := Range{RowStart: 0, RowEnd: 3, ColumnStart: 0, ColumnEnd: 3}
		if diff := cmp.Diff(want, r); diff != "" {
			t.Fatalf("range mismatch (-want +got):\n%s", diff)
		}
		if r.Len() != 16 {
			t.Errorf("expected the whole grid, got %d tiles", r.Len())
		}
	})

	t.Run("hugeScroll", func(t *testing.T) {
		r := VisibleRange(l, Viewport{X: -1 << 30, Y: 1 << 30, Width: 100, Height: 100}, 1e-300)
		if !r.Empty() {
			t.Fatalf("expected empty range below the grid, got %+v", r)
		}
	})

	t.Run("zeroZoom", func(t *testing.T) {
		if r := VisibleRange(l, Viewport{Width: 100, Height: 100}, 0); !r.Empty() {
			t.Fatalf("expected empty range, got %+v", r)
		}
	})
}

func TestDetailLevel_Classify(t *testing.T) {
	l := mustLevel(t, 1.0, 1024, 1024, Size{256, 256})
	r := Range{RowStart: 1, RowEnd: 2, ColumnStart: 0, ColumnEnd: 1}

	visible := 0
	total := 0
	prev := -1
	for tile, ok := range l.Classify(r) {
		idx := tile.Row*l.Columns + tile.Column
		if idx <= prev {
			t.Fatalf("tiles not in row-major order at %v", tile)
		}
		prev = idx
		total++
		if ok {
			visible++
		}
	}
	if total != 16 || visible != 4 {
		t.Fatalf("expected 4 of 16 visible, got %d of %d", visible, total)
	}
	if n := countSeq(l.TilesIn(r)); n != 4 {
		t.Errorf("expected TilesIn to yield 4 tiles, got %d", n)
	}
}

func TestTile_StateTransitions(t *testing.T) {
	tile := &Tile{Scale: 1}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	if tile.Soften() {
		t.Fatal("empty tile must not soften")
	}
	tile.SetLoaded(img)
	if tile.State() != Loaded || tile.Bitmap() != img {
		t.Fatalf("expected loaded tile, got %v", tile.State())
	}
	if !tile.Soften() || tile.State() != Softened || tile.Bitmap() != img {
		t.Fatalf("expected softened tile keeping pixels, got %v", tile.State())
	}
	if tile.Soften() {
		t.Fatal("softened tile must not soften again")
	}
	if got := tile.Release(); got != img {
		t.Fatalf("expected released pixels")
	}
	if tile.State() != Empty || tile.Bitmap() != nil {
		t.Fatalf("expected empty tile, got %v", tile.State())
	}
}

func countSeq[T any](seq iter.Seq[T]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}
