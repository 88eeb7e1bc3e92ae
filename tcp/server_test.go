package tcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikilobyte/reactor/buffer"
	"github.com/ikilobyte/reactor/iface"
	"github.com/ikilobyte/reactor/loop"
)

func TestServerEchoesBytesBackToClient(t *testing.T) {
	baseLoop, err := loop.New()
	require.NoError(t, err)
	go baseLoop.Loop()
	defer baseLoop.Quit()

	srv, err := NewServer(baseLoop, "echo", "127.0.0.1:0", WithNumEventLoop(1))
	require.NoError(t, err)

	srv.SetMessageCallback(func(conn iface.IConnection, buf *buffer.Buffer, _ time.Time) {
		conn.Send([]byte(buf.RetrieveAllAsString()))
	})
	require.NoError(t, srv.Start())

	// tcp.Server binds its own ephemeral port; recover it the same way a
	// real caller would, through the underlying listening fd.
	addr := srv.acceptor.listenAddr()

	clientLoop, err := loop.New()
	require.NoError(t, err)
	go clientLoop.Loop()
	defer clientLoop.Quit()

	received := make(chan string, 1)
	client := NewClient(clientLoop, "echo-client", addr)
	client.SetMessageCallback(func(conn iface.IConnection, buf *buffer.Buffer, _ time.Time) {
		received <- buf.RetrieveAllAsString()
	})
	client.SetConnectionCallback(func(conn iface.IConnection) {
		if conn.Connected() {
			conn.Send([]byte("hello"))
		}
	})
	client.Connect()

	select {
	case msg := <-received:
		require.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive echoed bytes")
	}

	client.Disconnect()
	srv.Stop()
}
