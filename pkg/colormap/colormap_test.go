package colormap

import (
	"image/color"
	"testing"
)

func TestLinearEndpoints(t *testing.T) {
	t.Parallel()

	if got := Viridis.At(-1); got != (color.RGBA{68, 1, 84, 255}) {
		t.Fatalf("unexpected Viridis.At(-1): %#v", got)
	}
	if got := Viridis.At(2); got != (color.RGBA{253, 231, 37, 255}) {
		t.Fatalf("unexpected Viridis.At(2): %#v", got)
	}
	if got := Gray.At(0.5); got != (color.RGBA{127, 127, 127, 255}) {
		t.Fatalf("unexpected Gray.At(0.5): %#v", got)
	}
}

func TestIndexWraps(t *testing.T) {
	t.Parallel()

	if Categorical.AtIndex(10) != Categorical.AtIndex(0) {
		t.Fatal("expected index 10 to wrap to 0")
	}
	if Categorical.AtIndex(-1) != Categorical.AtIndex(9) {
		t.Fatal("expected index -1 to wrap to 9")
	}
	if Categorical.At(1) != Categorical.AtIndex(9) {
		t.Fatal("expected At(1) to return the last entry")
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	if _, ok := Get("Viridis"); !ok {
		t.Fatal("expected viridis to be registered")
	}
	if _, ok := Get("jet"); ok {
		t.Fatal("expected unknown colormap to be missing")
	}
}
