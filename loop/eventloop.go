// Package loop implements spec.md section 4.4's EventLoop: the single
// blocking-wait-and-dispatch cycle each reactor thread runs, grounded
// on muduo's EventLoop.cc/.h (see original_source/muduo/net/EventLoop.h).
package loop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/ikilobyte/reactor/channel"
	"github.com/ikilobyte/reactor/logging"
	"github.com/ikilobyte/reactor/poller"
	"github.com/ikilobyte/reactor/timer"
)

// pollTimeoutMs bounds how long a single Poll call blocks, so a loop
// that's otherwise idle still wakes periodically (muduo's kPollTimeMs).
const pollTimeoutMs = 10000

// EventLoop owns exactly one demultiplexer, one timer queue, and the
// set of Channels registered against them. All of its state is
// confined to the goroutine that calls Loop; every other entry point
// either runs inline (if already on that goroutine) or marshals onto
// it via queueInLoop.
type EventLoop struct {
	looping                int32
	quit                   int32
	eventHandling          int32
	callingPendingFunctors int32
	ownerGoroutine         int64

	poller *pollerHandle
	timers *timer.Queue

	waker         waker
	wakeupChannel *channel.Channel

	mu              sync.Mutex
	pendingFunctors *queue.Queue // FIFO of func(), spec.md 4.4 "queueInLoop"

	currentActiveChannel *channel.Channel
}

// pollerHandle exists only so EventLoop can swap in a Poller after
// construction (timer.New needs a Loop before the poller field is set
// in New's happy path — kept simple by constructing eagerly instead).
type pollerHandle struct {
	poller.Poller
}

// New constructs an EventLoop bound to the process-default demultiplexer
// backend (spec.md section 4.3, REACTOR_POLLER-selectable).
func New() (*EventLoop, error) {
	return NewWithKind(poller.DefaultKind())
}

// NewWithKind constructs an EventLoop bound to a specific demultiplexer
// backend, mainly for tests that want to pin the poll(2) backend.
func NewWithKind(kind poller.Kind) (*EventLoop, error) {
	p, err := poller.NewKind(kind)
	if err != nil {
		return nil, err
	}
	w, err := newWaker()
	if err != nil {
		return nil, err
	}

	l := &EventLoop{
		poller:          &pollerHandle{p},
		waker:           w,
		ownerGoroutine:  0, // no goroutine has id 0; Loop stores the real owner
		pendingFunctors: queue.New(),
	}

	l.wakeupChannel = channel.New(l, w.Fd())
	l.wakeupChannel.SetReadCallback(l.handleWakeup)
	l.wakeupChannel.EnableReading()

	tq, err := timer.New(l)
	if err != nil {
		return nil, err
	}
	l.timers = tq

	return l, nil
}

// Loop runs the blocking wait-and-dispatch cycle until Quit is called.
// It must run on the goroutine that will be considered "the loop
// thread" for every affinity check for the rest of this EventLoop's
// life (spec.md section 4.4).
func (l *EventLoop) Loop() {
	atomic.StoreInt64(&l.ownerGoroutine, goroutineID())
	atomic.StoreInt32(&l.looping, 1)
	atomic.StoreInt32(&l.quit, 0)

	logging.Logger.Debug("EventLoop: start looping")

	for atomic.LoadInt32(&l.quit) == 0 {
		pollTime, active, err := l.poller.Poll(pollTimeoutMs)
		if err != nil {
			logging.Logger.WithError(err).Warn("EventLoop: poll error")
			continue
		}

		atomic.StoreInt32(&l.eventHandling, 1)
		for _, ch := range active {
			l.currentActiveChannel = ch
			ch.HandleEvent(pollTime)
		}
		l.currentActiveChannel = nil
		atomic.StoreInt32(&l.eventHandling, 0)

		l.doPendingFunctors()
	}

	logging.Logger.Debug("EventLoop: stop looping")
	atomic.StoreInt32(&l.looping, 0)
}

// Quit asks the loop to return from Loop as soon as it next wakes.
// Safe to call from any goroutine.
func (l *EventLoop) Quit() {
	atomic.StoreInt32(&l.quit, 1)
	if !l.IsInLoopThread() {
		l.wakeup()
	}
}

// RunInLoop runs fn on the loop's goroutine: immediately if already
// there, otherwise queued for the next iteration.
func (l *EventLoop) RunInLoop(fn func()) {
	if l.IsInLoopThread() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop appends fn to the pending-functor queue and wakes the
// loop if needed: either because the caller isn't the loop thread, or
// because the loop thread is itself mid-drain of that queue and
// appending after the drain snapshot would otherwise stall until the
// next Poll timeout (spec.md section 4.4, "callingPendingFunctors").
func (l *EventLoop) QueueInLoop(fn func()) {
	l.mu.Lock()
	l.pendingFunctors.Add(fn)
	l.mu.Unlock()

	if !l.IsInLoopThread() || atomic.LoadInt32(&l.callingPendingFunctors) == 1 {
		l.wakeup()
	}
}

func (l *EventLoop) doPendingFunctors() {
	l.mu.Lock()
	functors := l.pendingFunctors
	l.pendingFunctors = queue.New()
	l.mu.Unlock()

	atomic.StoreInt32(&l.callingPendingFunctors, 1)
	for functors.Length() > 0 {
		fn := functors.Remove().(func())
		fn()
	}
	atomic.StoreInt32(&l.callingPendingFunctors, 0)
}

// RunAt schedules cb to run once at when.
func (l *EventLoop) RunAt(when time.Time, cb func()) timer.TimerId {
	return l.timers.AddTimer(cb, when, 0)
}

// RunAfter schedules cb to run once after d elapses.
func (l *EventLoop) RunAfter(d time.Duration, cb func()) timer.TimerId {
	return l.RunAt(time.Now().Add(d), cb)
}

// RunEvery schedules cb to run every d, starting after the first d.
func (l *EventLoop) RunEvery(d time.Duration, cb func()) timer.TimerId {
	return l.timers.AddTimer(cb, time.Now().Add(d), d)
}

// Cancel cancels a timer previously scheduled via RunAt/After/Every.
func (l *EventLoop) Cancel(id timer.TimerId) {
	l.timers.Cancel(id)
}

func (l *EventLoop) handleWakeup(time.Time) {
	if err := l.waker.Drain(); err != nil {
		logging.Logger.WithError(err).Warn("EventLoop: wakeup drain error")
	}
}

func (l *EventLoop) wakeup() {
	if err := l.waker.Notify(); err != nil {
		logging.Logger.WithError(err).Warn("EventLoop: wakeup notify error")
	}
}

// UpdateChannel, RemoveChannel and HasChannel satisfy channel.Loop and
// timer.Loop so Channels (including the loop's own wakeup/timer
// channels) can register against this loop's poller.
func (l *EventLoop) UpdateChannel(ch *channel.Channel) { l.poller.UpdateChannel(ch) }
func (l *EventLoop) RemoveChannel(ch *channel.Channel) { l.poller.RemoveChannel(ch) }
func (l *EventLoop) HasChannel(ch *channel.Channel) bool { return l.poller.HasChannel(ch) }

// IsInLoopThread reports whether the calling goroutine is the one
// running Loop. Before Loop has started it reports false for every
// goroutine, so work submitted early is queued and the loop is woken.
func (l *EventLoop) IsInLoopThread() bool {
	return goroutineID() == atomic.LoadInt64(&l.ownerGoroutine)
}

// AssertInLoopThread logs loudly and panics if called off the loop's
// goroutine, mirroring muduo's abortNotInLoopThread: crossing this
// invariant means a caller is mutating loop-owned state unsafely.
func (l *EventLoop) AssertInLoopThread() {
	if !l.IsInLoopThread() {
		logging.Logger.WithField("owner", atomic.LoadInt64(&l.ownerGoroutine)).
			WithField("caller", goroutineID()).
			Panic("EventLoop: called from a non-owning goroutine")
	}
}

// EventHandling reports whether Loop is currently inside its dispatch
// pass. No caller inside this module uses it.
func (l *EventLoop) EventHandling() bool {
	return atomic.LoadInt32(&l.eventHandling) == 1
}

// Close releases the loop's wakeup fd. The timer alarm fd and the
// poller's fd are not closed. Only safe to call after Loop has returned.
func (l *EventLoop) Close() error {
	_ = l.waker.Close()
	return nil
}
