package tcp

import (
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/iface"
	"github.com/ikilobyte/reactor/logging"
	"github.com/ikilobyte/reactor/loop"
	"github.com/ikilobyte/reactor/sockets"
)

// Server is the TcpServer: one Acceptor on a base loop, an I/O loop
// pool connections are handed out to, and a name -> Connection
// registry.
type Server struct {
	name    string
	address string

	baseLoop *loop.EventLoop
	pool     *loop.Pool
	acceptor *Acceptor
	registry *registry

	numEventLoop  int
	reuseAddr     bool
	reusePort     bool
	highWaterMark int

	started    int32
	nextConnID uint64

	connectionCallback    iface.ConnectionCallback
	messageCallback       iface.MessageCallback
	writeCompleteCallback iface.WriteCompleteCallback
	highWaterMarkCallback iface.HighWaterMarkCallback
}

// ServerOption configures a Server at construction, mirroring the
// teacher's functional-option style (server/options.go).
type ServerOption func(*Server)

func WithNumEventLoop(n int) ServerOption   { return func(s *Server) { s.numEventLoop = n } }
func WithReuseAddr(v bool) ServerOption     { return func(s *Server) { s.reuseAddr = v } }
func WithReusePort(v bool) ServerOption     { return func(s *Server) { s.reusePort = v } }
func WithHighWaterMark(n int) ServerOption  { return func(s *Server) { s.highWaterMark = n } }

// NewServer constructs a Server bound to address, driven by baseLoop.
func NewServer(baseLoop *loop.EventLoop, name, address string, opts ...ServerOption) (*Server, error) {
	s := &Server{
		name:          name,
		address:       address,
		baseLoop:      baseLoop,
		registry:      newRegistry(),
		numEventLoop:  2,
		reuseAddr:     true,
		highWaterMark: 64 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}

	acceptor, err := NewAcceptor(baseLoop, address, s.reuseAddr, s.reusePort)
	if err != nil {
		return nil, err
	}
	acceptor.SetNewConnectionCallback(s.newConnection)
	s.acceptor = acceptor

	return s, nil
}

func (s *Server) SetConnectionCallback(cb iface.ConnectionCallback)       { s.connectionCallback = cb }
func (s *Server) SetMessageCallback(cb iface.MessageCallback)             { s.messageCallback = cb }
func (s *Server) SetWriteCompleteCallback(cb iface.WriteCompleteCallback) { s.writeCompleteCallback = cb }
func (s *Server) SetHighWaterMarkCallback(cb iface.HighWaterMarkCallback) { s.highWaterMarkCallback = cb }

// Start is idempotent: only the first call spins up the pool and the
// acceptor; it is one of the few methods safe to call from any thread.
func (s *Server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	pool, err := loop.NewPool(s.baseLoop, s.numEventLoop, nil)
	if err != nil {
		return err
	}
	s.pool = pool

	s.baseLoop.RunInLoop(s.acceptor.Listen)
	return nil
}

// ConnectionCount reports the number of live connections.
func (s *Server) ConnectionCount() int { return s.registry.len() }

// GetConnection looks up a live connection by the name minted in
// newConnection ("server-ip:port#seq"), mirroring the teacher's
// ConnectManager.Get lookup.
func (s *Server) GetConnection(name string) (iface.IConnection, bool) {
	c, ok := s.registry.get(name)
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *Server) newConnection(fd int, peerAddr net.Addr) {
	ioLoop := s.pool.NextLoop()

	connID := atomic.AddUint64(&s.nextConnID, 1)
	connName := fmt.Sprintf("%s-%s#%d", s.name, s.address, connID)

	localAddr := s.localAddrOf(fd)

	conn := NewConnection(ioLoop, connName, fd, localAddr, peerAddr, s.highWaterMark)
	conn.SetConnectionCallback(s.connectionCallback)
	conn.SetMessageCallback(s.messageCallback)
	conn.SetWriteCompleteCallback(s.writeCompleteCallback)
	conn.SetHighWaterMarkCallback(s.highWaterMarkCallback, s.highWaterMark)
	conn.setCloseCallback(s.removeConnection)

	s.registry.put(connName, conn)
	ioLoop.RunInLoop(conn.connectEstablished)
}

func (s *Server) localAddrOf(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		logging.Logger.WithError(err).Warn("tcp: getsockname failed")
		return nil
	}
	return sockets.SockaddrToAddr(sa)
}

// removeConnection posts removal from the registry to the base loop,
// then posts connectDestroyed to the connection's own loop, so the
// connection's final teardown always happens on the thread that owns
// it.
func (s *Server) removeConnection(conn *Connection) {
	s.baseLoop.RunInLoop(func() {
		s.registry.remove(conn.Name())
		conn.loop.RunInLoop(conn.connectDestroyed)
	})
}

// Stop closes the acceptor and force-closes every live connection.
func (s *Server) Stop() {
	s.baseLoop.RunInLoop(func() {
		_ = s.acceptor.Close()
	})
	s.registry.each(func(_ string, c *Connection) bool {
		c.ForceClose()
		return true
	})
}
