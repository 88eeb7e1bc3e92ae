package loop

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID recovers the calling goroutine's runtime id, the closest
// Go analogue to the OS thread id muduo's CurrentThread::tid() uses to
// implement isInLoopThread(). The Go runtime doesn't expose this
// through a public API, so it's read back out of the header line of a
// stack trace ("goroutine 123 [running]:"), a well-known technique for
// libraries that need per-goroutine identity for single-owner
// invariants. EventLoop.IsInLoopThread compares it with the stored
// owner id, so it decides whether RunInLoop runs a function inline and
// whether QueueInLoop wakes the loop. It returns -1 if the header can't
// be parsed.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(buf[:n])
	if len(field) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(field[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
