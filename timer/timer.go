// Package timer implements the TimerQueue of spec.md section 4.5: an
// ordered set of timers fired through a kernel timer primitive
// integrated into the owning EventLoop via a Channel, grounded on
// muduo's TimerQueue.h/.cc.
package timer

import "time"

// Timer is one scheduled callback. interval == 0 means one-shot.
type Timer struct {
	callback   func()
	expiration time.Time
	interval   time.Duration
	seq        uint64
	canceled   bool
}

func newTimer(cb func(), when time.Time, interval time.Duration, seq uint64) *Timer {
	return &Timer{callback: cb, expiration: when, interval: interval, seq: seq}
}

func (t *Timer) restart(now time.Time) {
	if t.interval > 0 {
		t.expiration = now.Add(t.interval)
	} else {
		t.expiration = time.Time{}
	}
}

// TimerId is the opaque handle returned by AddTimer; the pair
// (timer pointer, sequence) gives cancellation lookup the same
// uniqueness guarantee muduo gets from ActiveTimerSet's
// pair<Timer*, int64_t> (spec.md section 4.5, "Tie-break...is the timer
// object's address").
type TimerId struct {
	timer *Timer
	seq   uint64
}
