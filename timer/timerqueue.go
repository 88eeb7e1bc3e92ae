package timer

import (
	"container/heap"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/ikilobyte/reactor/channel"
	"github.com/ikilobyte/reactor/logging"
)

// Loop is the subset of EventLoop TimerQueue needs: it must be able to
// marshal addTimerInLoop/cancelInLoop onto the owning thread (spec.md
// section 4.5 — both public entry points are thread-safe by posting to
// the loop) and it must satisfy channel.Loop so the timer's alarm
// Channel can register itself.
type Loop interface {
	channel.Loop
	RunInLoop(fn func())
}

// Queue is the TimerQueue of spec.md section 4.5: a kernel timer
// primitive driving a min-heap of pending Timers, all state confined
// to the owning loop's thread.
type Queue struct {
	loop  Loop
	alarm alarm
	ch    *channel.Channel

	heap            timerHeap
	activeTimers    map[uint64]*Timer
	cancelingTimers map[uint64]bool

	callingExpiredTimers bool
	sequence             uint64
}

// New constructs a TimerQueue bound to loop and registers its alarm
// Channel for reading.
func New(loop Loop) (*Queue, error) {
	a, err := newAlarm()
	if err != nil {
		return nil, err
	}
	q := &Queue{
		loop:            loop,
		alarm:           a,
		activeTimers:    make(map[uint64]*Timer),
		cancelingTimers: make(map[uint64]bool),
	}
	q.ch = channel.New(loop, a.Fd())
	q.ch.SetReadCallback(q.handleRead)
	q.ch.EnableReading()
	return q, nil
}

// AddTimer schedules cb to run at when, repeating every interval if
// interval > 0. Thread-safe: marshals onto the owning loop.
func (q *Queue) AddTimer(cb func(), when time.Time, interval time.Duration) TimerId {
	seq := atomic.AddUint64(&q.sequence, 1)
	t := newTimer(cb, when, interval, seq)
	id := TimerId{timer: t, seq: seq}
	q.loop.RunInLoop(func() {
		q.addTimerInLoop(t)
	})
	return id
}

// Cancel cancels a previously scheduled timer. Best-effort: if the
// timer is currently firing, its callback still runs to completion,
// but a repeating re-arm is suppressed.
func (q *Queue) Cancel(id TimerId) {
	q.loop.RunInLoop(func() {
		q.cancelInLoop(id)
	})
}

func (q *Queue) addTimerInLoop(t *Timer) {
	if q.insert(t) {
		_ = q.alarm.Arm(t.expiration)
	}
}

func (q *Queue) cancelInLoop(id TimerId) {
	if _, ok := q.activeTimers[id.seq]; ok {
		delete(q.activeTimers, id.seq)
		id.timer.canceled = true // lazy delete: skipped when popped off the heap
		return
	}
	if q.callingExpiredTimers {
		q.cancelingTimers[id.seq] = true
	}
}

// insert adds t to both the fire-order heap and the by-sequence active
// set, returning true if t is now the earliest pending timer (the
// caller must then re-arm the kernel alarm).
func (q *Queue) insert(t *Timer) bool {
	earliestChanged := len(q.heap) == 0 || t.expiration.Before(q.heap[0].expiration)
	heap.Push(&q.heap, t)
	q.activeTimers[t.seq] = t
	return earliestChanged
}

// handleRead fires when the kernel alarm notifies readiness: it drains
// the notification, collects every timer whose expiration has passed,
// runs their callbacks, re-arms still-alive repeating timers, and
// re-arms the kernel alarm for whatever is earliest afterward.
func (q *Queue) handleRead(receiveTime time.Time) {
	if err := q.alarm.Drain(); err != nil {
		logging.Logger.WithError(err).Warn("timer: alarm drain error")
	}

	expired := q.getExpired(receiveTime)

	q.callingExpiredTimers = true
	for expired.Length() > 0 {
		t := expired.Remove().(*Timer)
		if !t.canceled {
			t.callback()
		}
		q.rearmIfRepeating(t, receiveTime)
	}
	q.callingExpiredTimers = false
	q.cancelingTimers = make(map[uint64]bool)

	if len(q.heap) > 0 {
		_ = q.alarm.Arm(q.heap[0].expiration)
	} else {
		_ = q.alarm.Arm(time.Time{})
	}
}

// getExpired pops every timer whose expiration is <= now off the heap
// into an eapache/queue FIFO staging list, mirroring
// TimerQueue::getExpired in TimerQueue.cc.
func (q *Queue) getExpired(now time.Time) *queue.Queue {
	out := queue.New()
	for len(q.heap) > 0 && !q.heap[0].expiration.After(now) {
		t := heap.Pop(&q.heap).(*Timer)
		delete(q.activeTimers, t.seq)
		out.Add(t)
	}
	return out
}

// rearmIfRepeating re-inserts t into the heap if it's a repeating timer
// that wasn't cancelled mid-fire (either before getExpired ran, or from
// within its own callback via cancelingTimers).
func (q *Queue) rearmIfRepeating(t *Timer, now time.Time) {
	if t.canceled || t.interval <= 0 || q.cancelingTimers[t.seq] {
		return
	}
	t.restart(now)
	q.insert(t)
}
