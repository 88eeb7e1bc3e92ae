package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikilobyte/reactor/channel"
)

// fakeLoop runs everything synchronously on the calling goroutine, which
// is exactly what a single-threaded test needs and satisfies both
// channel.Loop and timer.Loop.
type fakeLoop struct {
	channels map[int]*channel.Channel
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{channels: make(map[int]*channel.Channel)}
}

func (l *fakeLoop) RunInLoop(fn func())               { fn() }
func (l *fakeLoop) AssertInLoopThread()                {}
func (l *fakeLoop) UpdateChannel(ch *channel.Channel)  { l.channels[ch.Fd()] = ch }
func (l *fakeLoop) RemoveChannel(ch *channel.Channel)  { delete(l.channels, ch.Fd()) }

func TestAddTimerFiresOnce(t *testing.T) {
	loop := newFakeLoop()
	q, err := New(loop)
	require.NoError(t, err)
	defer q.alarm.Close()

	fired := make(chan struct{}, 1)
	q.AddTimer(func() { fired <- struct{}{} }, time.Now().Add(20*time.Millisecond), 0)

	time.Sleep(40 * time.Millisecond)
	q.handleRead(time.Now())

	select {
	case <-fired:
	default:
		t.Fatal("timer did not fire")
	}
}

func TestCancelBeforeFirePreventsCallback(t *testing.T) {
	loop := newFakeLoop()
	q, err := New(loop)
	require.NoError(t, err)
	defer q.alarm.Close()

	called := false
	id := q.AddTimer(func() { called = true }, time.Now().Add(50*time.Millisecond), 0)
	q.Cancel(id)

	time.Sleep(80 * time.Millisecond)
	q.handleRead(time.Now())
	require.False(t, called)
}

func TestRepeatingTimerReinsertsIntoHeap(t *testing.T) {
	loop := newFakeLoop()
	q, err := New(loop)
	require.NoError(t, err)
	defer q.alarm.Close()

	now := time.Now()
	tm := newTimer(func() {}, now, 10*time.Millisecond, 1)
	q.insert(tm)

	expired := q.getExpired(now.Add(time.Millisecond))
	require.Equal(t, 1, expired.Length())

	q.callingExpiredTimers = true
	q.rearmIfRepeating(tm, now.Add(time.Millisecond))
	q.callingExpiredTimers = false

	require.Len(t, q.heap, 1)
	require.True(t, q.heap[0].expiration.After(now))
}

func TestGetExpiredOnlyPopsDueTimers(t *testing.T) {
	loop := newFakeLoop()
	q, err := New(loop)
	require.NoError(t, err)
	defer q.alarm.Close()

	now := time.Now()
	q.insert(newTimer(func() {}, now.Add(-time.Second), 0, 1))
	q.insert(newTimer(func() {}, now.Add(time.Hour), 0, 2))

	expired := q.getExpired(now)
	require.Equal(t, 1, expired.Length())
	require.Len(t, q.heap, 1)
}
