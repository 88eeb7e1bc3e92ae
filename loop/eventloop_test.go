package loop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikilobyte/reactor/poller"
	"github.com/ikilobyte/reactor/timer"
)

func TestLoopRunsQueuedFunctorsFromAnotherGoroutine(t *testing.T) {
	l, err := NewWithKind(poller.KindPoll)
	require.NoError(t, err)
	defer l.Close()

	go l.Loop()

	var ran int32
	done := make(chan struct{})
	l.QueueInLoop(func() {
		atomic.StoreInt32(&ran, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued functor never ran")
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&ran))

	l.Quit()
}

func TestRunAfterFiresTimer(t *testing.T) {
	l, err := NewWithKind(poller.KindPoll)
	require.NoError(t, err)
	defer l.Close()

	go l.Loop()

	fired := make(chan struct{})
	l.RunAfter(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	l.Quit()
}

func TestRunEveryRepeatsUntilCancelled(t *testing.T) {
	l, err := NewWithKind(poller.KindPoll)
	require.NoError(t, err)
	defer l.Close()

	go l.Loop()

	var count int32
	idCh := make(chan timer.TimerId, 1)
	l.RunInLoop(func() {
		idCh <- l.RunEvery(5*time.Millisecond, func() {
			atomic.AddInt32(&count, 1)
		})
	})
	id := <-idCh

	time.Sleep(60 * time.Millisecond)

	done := make(chan struct{})
	l.RunInLoop(func() {
		l.Cancel(id)
		close(done)
	})
	<-done

	seenAfterCancel := atomic.LoadInt32(&count)
	time.Sleep(30 * time.Millisecond)
	l.Quit()

	require.GreaterOrEqual(t, seenAfterCancel, int32(2))
	require.LessOrEqual(t, atomic.LoadInt32(&count), seenAfterCancel+1)
}
