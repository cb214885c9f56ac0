package instance

import (
	"time"

	"github.com/diivious/eigrpd/internal/timerutil"
)

// newOneShotTimer arms a timer that calls fire once after d elapses. fire
// runs on the timer's own goroutine (time.AfterFunc) and must not touch
// Instance state directly — it should only Post an event for Run's loop
// to process, keeping every actual mutation single-threaded (§5).
func newOneShotTimer(d time.Duration, fire func()) *timerutil.Timer {
	return timerutil.New(d, fire)
}

// newRecurringTimer arms a timer that calls fire every d until Stopped.
// Re-arming happens from within the fired callback's own goroutine; since
// nothing else ever calls Reset/Stop on this particular timer concurrently
// except the interface teardown path (which only runs from Run's loop
// after the corresponding Post has already been dropped or processed),
// this stays race-free in practice without adding a lock.
func newRecurringTimer(d time.Duration, fire func()) *timerutil.Timer {
	var t *timerutil.Timer
	t = timerutil.New(d, func() {
		fire()
		t.Reset()
	})
	return t
}
