package loop

import (
	"sync"

	"github.com/ikilobyte/reactor/logging"
)

// Thread owns one goroutine running exactly one EventLoop, grounded on
// muduo's EventLoopThread (EventLoopThread.cc): construction returns
// only after the loop has been constructed (and the optional callback
// run) on its own goroutine, so callers never race the loop's own
// initialization. Loop itself may not have been entered yet.
type Thread struct {
	mu       sync.Mutex
	cond     *sync.Cond
	loop     *EventLoop
	callback func(*EventLoop) // optional, run on the new loop before it starts looping
	started  bool
}

// NewThread starts a goroutine that constructs and runs an EventLoop,
// invoking cb (if non-nil) on that loop before entering Loop. It
// blocks until the loop is constructed and ready to be handed out.
func NewThread(cb func(*EventLoop)) *Thread {
	t := &Thread{callback: cb}
	t.cond = sync.NewCond(&t.mu)

	go t.run()

	t.mu.Lock()
	for !t.started {
		t.cond.Wait()
	}
	t.mu.Unlock()

	return t
}

func (t *Thread) run() {
	l, err := New()
	if err != nil {
		// System-fatal per spec.md section 7: failure to create the core
		// fds (epoll/eventfd/timerfd) at init is unrecoverable.
		logging.Logger.WithError(err).Fatal("EventLoopThread: failed to construct loop")
	}

	if t.callback != nil {
		t.callback(l)
	}

	t.mu.Lock()
	t.loop = l
	t.started = true
	t.cond.Signal()
	t.mu.Unlock()

	l.Loop()

	t.mu.Lock()
	t.loop = nil
	t.mu.Unlock()
}

// Loop returns the running EventLoop this thread owns.
func (t *Thread) Loop() *EventLoop {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop
}
