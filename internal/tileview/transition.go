package tileview

import (
	"fmt"
	"log"
	"time"

	"github.com/atlasmap-sc/tileview/internal/loop"
	"github.com/atlasmap-sc/tileview/internal/pyramid"
)

// TransitionState is the phase of the current/previous level pair.
type TransitionState int

const (
	// Inactive means no level has been selected yet.
	Inactive TransitionState = iota
	// Active means a current level is set and no previous level is retained.
	Active
	// Retiring means the previous level is retained until its clear timer fires.
	Retiring
)

func (s TransitionState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Retiring:
		return "retiring"
	default:
		return fmt.Sprintf("TransitionState(%d)", int(s))
	}
}

// tileOps is the part of the load scheduler a transition drives.
type tileOps interface {
	Cancel(*pyramid.Tile)
	Clear(*pyramid.Tile)
	Soften(*pyramid.Tile)
}

// Transition switches between the current detail level and a retained
// previous level. Loop goroutine only.
type Transition struct {
	loop      *loop.Loop
	ops       tileOps
	retention time.Duration
	verbose   bool

	current    *pyramid.DetailLevel
	previous   *pyramid.DetailLevel
	clearTimer *loop.Timer
}

func newTransition(l *loop.Loop, ops tileOps, retention time.Duration, verbose bool) *Transition {
	return &Transition{loop: l, ops: ops, retention: retention, verbose: verbose}
}

// Current returns the active level, nil while Inactive.
func (tr *Transition) Current() *pyramid.DetailLevel { return tr.current }

// Previous returns the retained level, nil unless Retiring.
func (tr *Transition) Previous() *pyramid.DetailLevel { return tr.previous }

// State returns the transition phase.
func (tr *Transition) State() TransitionState {
	switch {
	case tr.current == nil:
		return Inactive
	case tr.previous != nil:
		return Retiring
	default:
		return Active
	}
}

// Reconcile makes desired the current level. When it replaces a level of a
// different scale, the old level is softened and retained as previous until
// the retention timer fires or another transition happens. It reports
// whether a transition took place.
func (tr *Transition) Reconcile(desired *pyramid.DetailLevel) bool {
	if desired == nil {
		return false
	}
	current := tr.current
	if current == nil {
		tr.current = desired
		return false
	}
	if desired.Scale == current.Scale {
		return false
	}

	log.Printf("[Transition] changed detail level from %g to %g", current.Scale, desired.Scale)

	tr.stopTimer()

	// At most one previous level: a pending one goes now, not when its timer fires.
	if tr.previous != nil {
		tr.clearLevel(tr.previous)
	}

	if tr.verbose {
		log.Printf("[Transition] canceling and softening detail level %g", current.Scale)
	}
	for tile := range current.Tiles() {
		tr.ops.Cancel(tile)
	}
	for tile := range current.Tiles() {
		tr.ops.Soften(tile)
	}

	tr.previous = current
	tr.current = desired
	tr.clearTimer = tr.loop.AfterFunc(tr.retention, tr.ClearPrevious)
	return true
}

// ClearPrevious releases the retained level right away.
func (tr *Transition) ClearPrevious() {
	tr.stopTimer()
	if tr.previous == nil {
		return
	}
	tr.clearLevel(tr.previous)
	tr.previous = nil
}

// Replace swaps a level that was overwritten in the scale index.
func (tr *Transition) Replace(old, replacement *pyramid.DetailLevel) {
	tr.clearLevel(old)
	if tr.current == old {
		tr.current = replacement
	}
	if tr.previous == old {
		tr.stopTimer()
		tr.previous = nil
	}
}

// Reset clears both levels and returns to Inactive.
func (tr *Transition) Reset() {
	tr.ClearPrevious()
	if tr.current != nil {
		tr.clearLevel(tr.current)
		tr.current = nil
	}
}

func (tr *Transition) clearLevel(l *pyramid.DetailLevel) {
	if tr.verbose {
		log.Printf("[Transition] clearing detail level %g", l.Scale)
	}
	for tile := range l.Tiles() {
		tr.ops.Clear(tile)
	}
}

func (tr *Transition) stopTimer() {
	if tr.clearTimer != nil {
		tr.clearTimer.Stop()
		tr.clearTimer = nil
	}
}
