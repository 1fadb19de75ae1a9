// Package loop provides the owning goroutine of a tile view: a serial task
// queue, cancelable one-shot timers that fire on it, and a debouncer.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when posting to a loop that is no longer running.
var ErrStopped = errors.New("loop: stopped")

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	tasks    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a loop with a task queue of the given capacity.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Loop{
		tasks:  make(chan func(), queueSize),
		stopCh: make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case f := <-l.tasks:
			f()
		}
	}
}

// Stop ends Run. Pending tasks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed once the loop stops.
func (l *Loop) Done() <-chan struct{} { return l.stopCh }

// Post queues f for execution on the loop goroutine. It blocks while the queue
// is full and reports false if the loop stopped first.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.stopCh:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.stopCh:
		return false
	}
}

// Do runs f on the loop goroutine and waits for it to return.
// It must not be called from the loop goroutine itself.
//
// If ctx is done before f starts, f is skipped and Do returns ctx.Err().
// Once f has started, Do waits for it and returns nil.
func (l *Loop) Do(ctx context.Context, f func()) error {
	var state atomic.Int32 // 0 queued, 1 running, 2 abandoned
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		if ctx.Err() != nil || !state.CompareAndSwap(0, 1) {
			return
		}
		f()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
	case <-l.stopCh:
		return ErrStopped
	case <-ctx.Done():
		if state.CompareAndSwap(0, 2) {
			return ctx.Err()
		}
		<-done
	}
	if state.Load() != 1 {
		return ctx.Err()
	}
	return nil
}

// Timer is a one-shot delayed task running on the loop goroutine.
// Its methods must be called from the loop goroutine.
type Timer struct {
	t    *time.Timer
	done bool
}

// AfterFunc schedules f on the loop goroutine after d.
// It must be called from the loop goroutine.
func (l *Loop) AfterFunc(d time.Duration, f func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have run after the timer fired but before this task.
			if tm.done {
				return
			}
			tm.done = true
			f()
		})
	})
	return tm
}

// Stop cancels the timer. It reports whether the task was still pending.
func (tm *Timer) Stop() bool {
	if tm.done {
		return false
	}
	tm.done = true
	tm.t.Stop()
	return true
}

// Pending reports whether the timer has neither fired nor been stopped.
func (tm *Timer) Pending() bool { return !tm.done }
