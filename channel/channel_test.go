package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeLoop struct {
	updated []*Channel
	removed []*Channel
}

func (l *fakeLoop) UpdateChannel(ch *Channel) { l.updated = append(l.updated, ch) }
func (l *fakeLoop) RemoveChannel(ch *Channel) { l.removed = append(l.removed, ch) }
func (l *fakeLoop) AssertInLoopThread()       {}

func TestEnableReadingUpdatesLoopAndInterest(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	require.True(t, ch.IsNoneEvent())
	ch.EnableReading()
	require.True(t, ch.IsReading())
	require.Len(t, l.updated, 1)
}

func TestHandleEventDispatchesReadAndWrite(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	var readFired, writeFired bool
	ch.SetReadCallback(func(time.Time) { readFired = true })
	ch.SetWriteCallback(func() { writeFired = true })

	ch.SetRevents(EventRead | EventWrite)
	ch.HandleEvent(time.Now())

	require.True(t, readFired)
	require.True(t, writeFired)
}

func TestHandleEventHangupWithNoReadFiresCloseOnly(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)
	ch.DoNotLogHup()

	var closed, read bool
	ch.SetCloseCallback(func() { closed = true })
	ch.SetReadCallback(func(time.Time) { read = true })

	ch.SetRevents(Events(unix.POLLHUP))
	ch.HandleEvent(time.Now())

	require.True(t, closed)
	require.False(t, read)
}

func TestTieSkipsDispatchOnFailedPromotion(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)

	alive := false
	ch.Tie(func() (interface{}, bool) { return nil, alive })

	var fired bool
	ch.SetReadCallback(func(time.Time) { fired = true })
	ch.SetRevents(EventRead)

	ch.HandleEvent(time.Now())
	require.False(t, fired)

	alive = true
	ch.HandleEvent(time.Now())
	require.True(t, fired)
}

func TestRemoveDelegatesToLoop(t *testing.T) {
	l := &fakeLoop{}
	ch := New(l, 3)
	ch.Remove()
	require.Len(t, l.removed, 1)
}
