package tcp

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/iface"
	"github.com/ikilobyte/reactor/logging"
	"github.com/ikilobyte/reactor/loop"
	"github.com/ikilobyte/reactor/sockets"
)

// Client is the active-open counterpart of Server: one Connector
// driving a single Connection per successful connect.
type Client struct {
	name      string
	address   string
	ioLoop    *loop.EventLoop
	connector *Connector

	highWaterMark int
	retry         bool

	mu   sync.Mutex
	conn *Connection

	connectionCallback    iface.ConnectionCallback
	messageCallback       iface.MessageCallback
	writeCompleteCallback iface.WriteCompleteCallback

	nextConnID uint64
}

// NewClient constructs a Client that will connect to address once
// Connect is called.
func NewClient(ioLoop *loop.EventLoop, name, address string) *Client {
	c := &Client{
		name:          name,
		address:       address,
		ioLoop:        ioLoop,
		highWaterMark: 64 * 1024 * 1024,
	}
	c.connector = NewConnector(ioLoop, address, c.newConnection)
	return c
}

func (c *Client) SetConnectionCallback(cb iface.ConnectionCallback)       { c.connectionCallback = cb }
func (c *Client) SetMessageCallback(cb iface.MessageCallback)             { c.messageCallback = cb }
func (c *Client) SetWriteCompleteCallback(cb iface.WriteCompleteCallback) { c.writeCompleteCallback = cb }

// Retry enables reconnecting (via the Connector's own backoff) whenever
// the established connection later goes down.
func (c *Client) Retry(v bool) { c.retry = v }

// Connect starts the underlying Connector.
func (c *Client) Connect() { c.connector.Start() }

// Disconnect force-closes the current connection, if any, and stops
// the Connector so it won't retry.
func (c *Client) Disconnect() {
	c.connector.Stop()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.ForceClose()
	}
}

// Connection returns the current Connection, or nil before the first
// successful connect (or after a disconnect with retry disabled).
func (c *Client) Connection() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) newConnection(fd int) {
	peerAddr := c.remoteAddrOf(fd)
	localAddr := c.localAddrOf(fd)

	connID := atomic.AddUint64(&c.nextConnID, 1)
	connName := c.name + "#" + strconv.FormatUint(connID, 10)

	conn := NewConnection(c.ioLoop, connName, fd, localAddr, peerAddr, c.highWaterMark)
	conn.SetConnectionCallback(c.connectionCallback)
	conn.SetMessageCallback(c.messageCallback)
	conn.SetWriteCompleteCallback(c.writeCompleteCallback)
	conn.setCloseCallback(c.removeConnection)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	conn.connectEstablished()
}

func (c *Client) removeConnection(conn *Connection) {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	conn.loop.QueueInLoop(conn.connectDestroyed)

	if c.retry && !c.connector.stopped {
		c.connector.Start()
	}
}

func (c *Client) remoteAddrOf(fd int) net.Addr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		logging.Logger.WithError(err).Warn("tcp: getpeername failed")
		return nil
	}
	return sockets.SockaddrToAddr(sa)
}

func (c *Client) localAddrOf(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		logging.Logger.WithError(err).Warn("tcp: getsockname failed")
		return nil
	}
	return sockets.SockaddrToAddr(sa)
}
