package loop

// waker is the cross-thread wakeup primitive an EventLoop arms its
// wakeupChannel with, so queueInLoop can interrupt a blocked Poll call
// (spec.md section 4.4, "a dedicated wakeup fd"). Two backends exist:
// a Linux eventfd (wakeup_linux.go) and a portable self-pipe
// (wakeup_other.go).
type waker interface {
	Fd() int
	Notify() error
	Drain() error
	Close() error
}
