// Package iface holds the small set of cross-package contracts that
// user code and the core's own components share, in the spirit of the
// teacher's iface/ package (IConnect, IPoller, IEventLoop, ...). Only
// contracts that are genuinely consumed from more than one package live
// here; everything else stays a concrete type in its owning package.
package iface

import (
	"net"
	"time"

	"github.com/ikilobyte/reactor/buffer"
)

// IConnection is the public surface a TcpConnection exposes to user
// callbacks and to application code holding a handle to it (spec.md
// section 3, "reference-counted and shared between the loop... and any
// user code holding the handle").
type IConnection interface {
	ID() uint64
	Name() string
	LocalAddr() net.Addr
	PeerAddr() net.Addr
	Connected() bool
	Disconnected() bool

	// Send thread-safely queues bytes for write; see spec.md 4.7.
	Send(data []byte)
	// Shutdown half-closes the connection once pending writes drain.
	Shutdown()
	// ForceClose closes immediately without draining pending writes.
	ForceClose()
	ForceCloseWithDelay(delay time.Duration)

	SetContext(ctx interface{})
	Context() interface{}

	SetTCPNoDelay(on bool)
}

// ConnectionCallback fires both when a connection comes up and when it
// goes down; inspect IConnection.Connected()/Disconnected() to tell
// which.
type ConnectionCallback func(conn IConnection)

// MessageCallback fires once per successful, non-empty read with the
// bytes accumulated so far in the connection's input buffer.
type MessageCallback func(conn IConnection, buf *buffer.Buffer, receiveTime time.Time)

// WriteCompleteCallback fires once the output buffer has fully drained.
type WriteCompleteCallback func(conn IConnection)

// HighWaterMarkCallback fires when the output buffer crosses
// highWaterMark bytes on an upward transition.
type HighWaterMarkCallback func(conn IConnection, currentBufferBytes int)
