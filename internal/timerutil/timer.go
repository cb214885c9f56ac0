// Package timerutil wraps time.Timer with reset/cancel semantics matching
// §5's "timer is cancelled by disarming its handle" rule: cancellation
// never blocks on the timer's own channel and is always race-free because
// the core event loop is single-threaded.
package timerutil

import "time"

// Timer is a restartable, one-shot callback timer.
type Timer struct {
	timer    *time.Timer
	interval time.Duration
	running  bool
}

// New creates an armed Timer that calls f after d elapses.
func New(d time.Duration, f func()) *Timer {
	t := &Timer{interval: d, running: true}
	t.timer = time.AfterFunc(d, t.fire(f))
	return t
}

func (t *Timer) fire(f func()) func() {
	return func() {
		t.running = false
		f()
	}
}

// Reset restarts the timer at its configured interval.
func (t *Timer) Reset() {
	t.stopDrain()
	t.running = true
	t.timer.Reset(t.interval)
}

// ResetTo restarts the timer at a new interval, remembering it for future
// Reset calls.
func (t *Timer) ResetTo(d time.Duration) {
	t.interval = d
	t.Reset()
}

// Stop disarms the timer. Safe to call on an already-fired or already-
// stopped timer.
func (t *Timer) Stop() {
	t.stopDrain()
	t.running = false
}

func (t *Timer) stopDrain() {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
}

// Running reports whether the timer is currently armed.
func (t *Timer) Running() bool {
	return t.running
}
