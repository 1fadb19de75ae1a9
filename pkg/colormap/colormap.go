// Package colormap maps normalized values and indices to colors.
package colormap

import (
	"image/color"
	"strings"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// Linear interpolates between evenly spaced color stops.
type Linear struct {
	stops []color.RGBA
}

// NewLinear creates a colormap from at least one color stop.
func NewLinear(stops ...color.RGBA) Linear {
	if len(stops) == 0 {
		stops = []color.RGBA{{A: 255}}
	}
	return Linear{stops: stops}
}

// At returns the color at position t, clamped to [0, 1].
func (c Linear) At(t float64) color.Color {
	last := len(c.stops) - 1
	switch {
	case t <= 0 || last == 0:
		return c.stops[0]
	case t >= 1:
		return c.stops[last]
	}
	pos := t * float64(last)
	i := int(pos)
	return lerp(c.stops[i], c.stops[min(i+1, last)], pos-float64(i))
}

// AtIndex returns stop i, wrapping around.
func (c Linear) AtIndex(i int) color.Color {
	return c.stops[mod(i, len(c.stops))]
}

// Palette is a fixed list of distinct colors.
type Palette []color.RGBA

// At picks the palette entry covering t.
func (p Palette) At(t float64) color.Color {
	i := int(t * float64(len(p)))
	return p[max(0, min(i, len(p)-1))]
}

// AtIndex returns entry i, wrapping around.
func (p Palette) AtIndex(i int) color.Color {
	return p[mod(i, len(p))]
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + t*(float64(y)-float64(x)))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func mod(i, n int) int {
	return ((i % n) + n) % n
}

var (
	// Viridis approximates the matplotlib colormap of the same name.
	Viridis = NewLinear(
		color.RGBA{68, 1, 84, 255},
		color.RGBA{59, 82, 139, 255},
		color.RGBA{33, 145, 140, 255},
		color.RGBA{94, 201, 98, 255},
		color.RGBA{253, 231, 37, 255},
	)

	// Magma approximates the matplotlib colormap of the same name.
	Magma = NewLinear(
		color.RGBA{0, 0, 4, 255},
		color.RGBA{81, 18, 124, 255},
		color.RGBA{183, 55, 121, 255},
		color.RGBA{252, 137, 97, 255},
		color.RGBA{252, 253, 191, 255},
	)

	// Gray runs from black to white.
	Gray = NewLinear(color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255})

	// Categorical holds ten distinct colors.
	Categorical = Palette{
		{31, 119, 180, 255},
		{255, 127, 14, 255},
		{44, 160, 44, 255},
		{214, 39, 40, 255},
		{148, 103, 189, 255},
		{140, 86, 75, 255},
		{227, 119, 194, 255},
		{127, 127, 127, 255},
		{188, 189, 34, 255},
		{23, 190, 207, 255},
	}
)

var byName = map[string]Colormap{
	"viridis":     Viridis,
	"magma":       Magma,
	"gray":        Gray,
	"categorical": Categorical,
}

// Get returns the colormap registered under name, ignoring case.
func Get(name string) (Colormap, bool) {
	c, ok := byName[strings.ToLower(name)]
	return c, ok
}
