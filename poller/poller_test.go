package poller

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/channel"
)

type fakeLoop struct{}

func (fakeLoop) UpdateChannel(*channel.Channel) {}
func (fakeLoop) RemoveChannel(*channel.Channel) {}
func (fakeLoop) AssertInLoopThread()            {}

func newPipe(t *testing.T) (r, w int) {
	var fds [2]int
	err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func testPollerReportsReadiness(t *testing.T, p Poller) {
	r, w := newPipe(t)
	ch := channel.New(fakeLoop{}, r)
	ch.EnableReading()
	p.UpdateChannel(ch)
	require.True(t, p.HasChannel(ch))

	_, active, err := p.Poll(50)
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	_, active, err = p.Poll(1000)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, ch, active[0])

	p.RemoveChannel(ch)
	require.False(t, p.HasChannel(ch))
}

func TestPollPollerReportsReadiness(t *testing.T) {
	testPollerReportsReadiness(t, newPollPoller())
}

func TestDefaultKindHonoursEnvOverride(t *testing.T) {
	t.Setenv(envVar, string(KindPoll))
	require.Equal(t, KindPoll, DefaultKind())
}
