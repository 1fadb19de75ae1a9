package loop

import "time"

// Debouncer coalesces bursts of Trigger calls into one invocation of fn,
// run on the loop goroutine delay after the last Trigger.
type Debouncer struct {
	loop    *Loop
	delay   time.Duration
	fn      func()
	pending *Timer
}

// NewDebouncer creates a debouncer running fn on l.
func NewDebouncer(l *Loop, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{loop: l, delay: delay, fn: fn}
}

// Trigger (re)schedules the pending invocation. Loop goroutine only.
func (d *Debouncer) Trigger() {
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = d.loop.AfterFunc(d.delay, d.fire)
}

// Cancel drops the pending invocation, if any. Loop goroutine only.
func (d *Debouncer) Cancel() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Pending reports whether an invocation is scheduled. Loop goroutine only.
func (d *Debouncer) Pending() bool {
	return d.pending != nil && d.pending.Pending()
}

func (d *Debouncer) fire() {
	d.pending = nil
	d.fn()
}
