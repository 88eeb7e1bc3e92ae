// Package tcp implements the reactor's connection-level types:
// Acceptor, Connector, TcpConnection, TcpServer, TcpClient, grounded on
// netman's server/acceptor_linux.go, server/baseconnect.go and
// server/connect.go, generalized from netman's fixed-packet-framing
// connection model to a raw byte-stream TcpConnection with
// user-supplied callbacks.
package tcp

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/buffer"
	"github.com/ikilobyte/reactor/channel"
	"github.com/ikilobyte/reactor/common"
	"github.com/ikilobyte/reactor/iface"
	"github.com/ikilobyte/reactor/logging"
	"github.com/ikilobyte/reactor/sockets"
	"github.com/ikilobyte/reactor/timer"
)

// Loop is the subset of loop.EventLoop a Connection/Acceptor/Connector
// needs. Declared locally to avoid an import cycle with the loop
// package (loop doesn't know about tcp; tcp depends down on loop).
type Loop interface {
	channel.Loop
	RunInLoop(fn func())
	QueueInLoop(fn func())
	RunAfter(d time.Duration, cb func()) timer.TimerId
	Cancel(id timer.TimerId)
	IsInLoopThread() bool
}

var connIDSeq uint64

// Connection is the TcpConnection of spec.md section 4.7: a
// reference-counted, single-loop-owned end of an established TCP
// socket, wrapping non-blocking read/write around a pair of Buffers.
type Connection struct {
	id   uint64
	name string
	loop Loop
	fd   int

	ch *channel.Channel

	localAddr net.Addr
	peerAddr  net.Addr

	state int32 // common.ConnState

	inputBuffer  *buffer.Buffer
	outputBuffer *buffer.Buffer

	highWaterMark int

	connectionCallback    iface.ConnectionCallback
	messageCallback       iface.MessageCallback
	writeCompleteCallback iface.WriteCompleteCallback
	highWaterMarkCallback iface.HighWaterMarkCallback
	closeCallback         func(*Connection) // internal, set by TcpServer/TcpClient

	mu      sync.Mutex
	context interface{}
}

// NewConnection constructs a Connection in the Connecting state. It
// must be finished on loop via connectEstablished before any callback
// fires.
func NewConnection(loop Loop, name string, fd int, localAddr, peerAddr net.Addr, highWaterMark int) *Connection {
	c := &Connection{
		id:            atomic.AddUint64(&connIDSeq, 1),
		name:          name,
		loop:          loop,
		fd:            fd,
		localAddr:     localAddr,
		peerAddr:      peerAddr,
		state:         int32(common.StateConnecting),
		inputBuffer:   buffer.New(),
		outputBuffer:  buffer.New(),
		highWaterMark: highWaterMark,
	}
	c.ch = channel.New(loop, fd)
	c.ch.SetReadCallback(c.handleRead)
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetCloseCallback(c.handleClose)
	c.ch.SetErrorCallback(c.handleError)
	c.ch.Tie(func() (interface{}, bool) { return c, true })
	return c
}

func (c *Connection) ID() uint64        { return c.id }
func (c *Connection) Name() string      { return c.name }
func (c *Connection) LocalAddr() net.Addr { return c.localAddr }
func (c *Connection) PeerAddr() net.Addr  { return c.peerAddr }

func (c *Connection) state_() common.ConnState {
	return common.ConnState(atomic.LoadInt32(&c.state))
}

func (c *Connection) Connected() bool    { return c.state_() == common.StateConnected }
func (c *Connection) Disconnected() bool { return c.state_() == common.StateDisconnected }

func (c *Connection) SetContext(ctx interface{}) {
	c.mu.Lock()
	c.context = ctx
	c.mu.Unlock()
}

func (c *Connection) Context() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.context
}

func (c *Connection) SetTCPNoDelay(on bool) {
	if err := sockets.SetTCPNoDelay(c.fd, on); err != nil {
		logging.Logger.WithError(err).WithField("conn", c.name).Warn("tcp: set TCP_NODELAY failed")
	}
}

func (c *Connection) SetConnectionCallback(cb iface.ConnectionCallback)       { c.connectionCallback = cb }
func (c *Connection) SetMessageCallback(cb iface.MessageCallback)             { c.messageCallback = cb }
func (c *Connection) SetWriteCompleteCallback(cb iface.WriteCompleteCallback) { c.writeCompleteCallback = cb }
func (c *Connection) SetHighWaterMarkCallback(cb iface.HighWaterMarkCallback, mark int) {
	c.highWaterMarkCallback = cb
	c.highWaterMark = mark
}
func (c *Connection) setCloseCallback(cb func(*Connection)) { c.closeCallback = cb }

// connectEstablished transitions Connecting -> Connected, ties in the
// Channel and fires the user connection callback. Must run on loop.
func (c *Connection) connectEstablished() {
	c.loop.AssertInLoopThread()
	atomic.StoreInt32(&c.state, int32(common.StateConnected))
	c.ch.EnableReading()
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
}

// connectDestroyed tears down the Channel once the connection has
// fully transitioned to Disconnected. Must run on loop.
func (c *Connection) connectDestroyed() {
	c.loop.AssertInLoopThread()
	if c.state_() == common.StateConnected {
		atomic.StoreInt32(&c.state, int32(common.StateDisconnected))
		c.ch.DisableAll()
		if c.connectionCallback != nil {
			c.connectionCallback(c)
		}
	}
	c.ch.Remove()
	_ = unix.Close(c.fd)
}

func (c *Connection) handleRead(receiveTime time.Time) {
	n, err := c.inputBuffer.ReadFd(c.fd)
	switch {
	case n > 0:
		if c.messageCallback != nil {
			c.messageCallback(c, c.inputBuffer, receiveTime)
		}
	case n == 0:
		c.handleClose()
	default:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		logging.Logger.WithError(err).WithField("conn", c.name).Warn("tcp: read error")
		c.handleError()
	}
}

func (c *Connection) handleWrite() {
	if !c.ch.IsWriting() {
		return
	}
	n, err := unix.Write(c.fd, c.outputBuffer.Peek())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		logging.Logger.WithError(err).WithField("conn", c.name).Warn("tcp: write error")
		return
	}
	c.outputBuffer.Retrieve(n)
	if c.outputBuffer.ReadableBytes() == 0 {
		c.ch.DisableWriting()
		if c.writeCompleteCallback != nil {
			c.writeCompleteCallback(c)
		}
		if c.state_() == common.StateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

func (c *Connection) handleClose() {
	c.loop.AssertInLoopThread()
	if s := c.state_(); s != common.StateConnected && s != common.StateDisconnecting {
		return
	}
	atomic.StoreInt32(&c.state, int32(common.StateDisconnected))
	c.ch.DisableAll()
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
	if c.closeCallback != nil {
		c.closeCallback(c)
	}
}

func (c *Connection) handleError() {
	if err := sockets.GetSocketError(c.fd); err != nil {
		logging.Logger.WithError(err).WithField("conn", c.name).Warn("tcp: socket error")
	}
}

// Send thread-safely queues data for write (spec.md section 4.7).
func (c *Connection) Send(data []byte) {
	if c.loop.IsInLoopThread() {
		c.sendInLoop(data)
		return
	}
	buf := append([]byte(nil), data...)
	c.loop.QueueInLoop(func() { c.sendInLoop(buf) })
}

func (c *Connection) sendInLoop(data []byte) {
	if c.state_() == common.StateDisconnected {
		return
	}

	var (
		wrote    int
		writeErr error
	)
	if !c.ch.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		n, err := unix.Write(c.fd, data)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				logging.Logger.WithError(err).WithField("conn", c.name).Warn("tcp: direct write error")
				writeErr = err
			}
		} else {
			wrote = n
			if wrote == len(data) && c.writeCompleteCallback != nil {
				c.loop.QueueInLoop(func() { c.writeCompleteCallback(c) })
			}
		}
	}
	if writeErr != nil {
		return
	}

	remaining := data[wrote:]
	if len(remaining) == 0 {
		return
	}

	before := c.outputBuffer.ReadableBytes()
	c.outputBuffer.Append(remaining)
	after := before + len(remaining)
	if before < c.highWaterMark && after >= c.highWaterMark && c.highWaterMarkCallback != nil {
		c.highWaterMarkCallback(c, after)
	}
	if !c.ch.IsWriting() {
		c.ch.EnableWriting()
	}
}

// Shutdown half-closes the write side once pending output drains
// (spec.md section 4.7).
func (c *Connection) Shutdown() {
	if c.state_() != common.StateConnected {
		return
	}
	atomic.StoreInt32(&c.state, int32(common.StateDisconnecting))
	c.loop.RunInLoop(c.shutdownInLoop)
}

func (c *Connection) shutdownInLoop() {
	if c.ch.IsWriting() {
		return // handleWrite will re-invoke once the output drains
	}
	if err := sockets.ShutdownWrite(c.fd); err != nil {
		logging.Logger.WithError(err).WithField("conn", c.name).Warn("tcp: shutdown write failed")
	}
}

// ForceClose closes immediately, discarding any pending output.
func (c *Connection) ForceClose() {
	if c.state_() == common.StateConnected || c.state_() == common.StateDisconnecting {
		atomic.StoreInt32(&c.state, int32(common.StateDisconnecting))
		c.loop.QueueInLoop(func() { c.handleClose() })
	}
}

// ForceCloseWithDelay closes after delay, on the owning loop.
func (c *Connection) ForceCloseWithDelay(delay time.Duration) {
	if c.state_() == common.StateConnected || c.state_() == common.StateDisconnecting {
		atomic.StoreInt32(&c.state, int32(common.StateDisconnecting))
		c.loop.RunAfter(delay, c.ForceClose)
	}
}
