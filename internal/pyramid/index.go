package pyramid

import (
	"errors"
	"slices"
)

// ErrNoLevels is returned when selecting from an index with no registered levels.
var ErrNoLevels = errors.New("pyramid: no detail levels registered")

// ScaleIndex holds detail levels ordered by ascending scale.
type ScaleIndex struct {
	levels []*DetailLevel
}

// Add inserts l in scale order. A level with the same scale is replaced and returned.
func (x *ScaleIndex) Add(l *DetailLevel) (replaced *DetailLevel) {
	i, found := slices.BinarySearchFunc(x.levels, l.Scale, func(e *DetailLevel, scale float64) int {
		switch {
		case e.Scale < scale:
			return -1
		case e.Scale > scale:
			return 1
		}
		return 0
	})
	if found {
		replaced = x.levels[i]
		x.levels[i] = l
		return replaced
	}
	x.levels = slices.Insert(x.levels, i, l)
	return nil
}

// Select returns the level with the smallest scale >= target/density, or the
// level with the largest scale if none qualifies.
func (x *ScaleIndex) Select(target, density float64) (*DetailLevel, error) {
	if len(x.levels) == 0 {
		return nil, ErrNoLevels
	}
	if density <= 0 {
		density = 1
	}
	want := target / density
	for _, l := range x.levels {
		if l.Scale >= want {
			return l, nil
		}
	}
	return x.levels[len(x.levels)-1], nil
}

// Len returns the number of registered levels.
func (x *ScaleIndex) Len() int { return len(x.levels) }

// Levels returns the registered levels in ascending scale order.
func (x *ScaleIndex) Levels() []*DetailLevel {
	return slices.Clone(x.levels)
}
