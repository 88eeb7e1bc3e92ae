package tcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/loop"
)

func TestConnectorConnectsToListeningSocket(t *testing.T) {
	l, err := loop.New()
	require.NoError(t, err)
	go l.Loop()
	defer l.Quit()

	acceptor, err := NewAcceptor(l, "127.0.0.1:0", true, false)
	require.NoError(t, err)
	defer acceptor.Close()
	l.RunInLoop(acceptor.Listen)

	// No new-connection callback is registered: Acceptor.handleRead closes
	// accepted fds itself when callback is nil, which is all this test
	// needs since it only exercises the Connector side.
	connected := make(chan int, 1)
	addr := acceptor.listenAddr()

	connector := NewConnector(l, addr, func(fd int) {
		connected <- fd
	})
	connector.Start()

	select {
	case fd := <-connected:
		require.Greater(t, fd, 0)
		_ = unix.Close(fd)
	case <-time.After(2 * time.Second):
		t.Fatal("connector never connected")
	}

	connector.Stop()
}
