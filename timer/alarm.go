package timer

import "time"

// alarm is the kernel timer primitive TimerQueue integrates via a
// Channel (spec.md section 4.5: "Owns a kernel timer fd with a
// Channel"). Two implementations exist: a Linux timerfd
// (alarm_linux.go) and a portable self-pipe driven by a runtime timer
// (alarm_other.go) for the non-Linux platforms the teacher also
// supports (eventloop/kqueue.go).
type alarm interface {
	Fd() int
	// Arm schedules the next wake-up at `at`. A zero time disarms it.
	Arm(at time.Time) error
	// Drain consumes the wake-up notification after a readiness event.
	Drain() error
	Close() error
}
