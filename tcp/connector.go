package tcp

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/channel"
	"github.com/ikilobyte/reactor/common"
	"github.com/ikilobyte/reactor/logging"
	"github.com/ikilobyte/reactor/reactorerr"
	"github.com/ikilobyte/reactor/sockets"
	"github.com/ikilobyte/reactor/timer"
)

// Retry backoff constants from muduo's Connector.cc (kInitRetryDelayMs,
// kMaxRetryDelayMs).
const (
	initRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 30 * time.Second
)

// Connector is the active-open state machine.
type Connector struct {
	loop    Loop
	address string

	state common.ConnectorState

	fd int
	ch *channel.Channel

	retryDelay time.Duration
	retryTimer timer.TimerId
	stopped    bool

	onConnected func(fd int)
}

// NewConnector constructs a Connector targeting address; it does
// nothing until Start is called.
func NewConnector(loop Loop, address string, onConnected func(fd int)) *Connector {
	return &Connector{
		loop:        loop,
		address:     address,
		state:       common.ConnectorDisconnected,
		retryDelay:  initRetryDelay,
		onConnected: onConnected,
	}
}

func (c *Connector) Start() {
	c.stopped = false
	c.loop.RunInLoop(c.startInLoop)
}

func (c *Connector) startInLoop() {
	if c.stopped {
		return
	}
	c.connect()
}

// Stop cancels any pending retry and removes the probe Channel.
func (c *Connector) Stop() {
	c.stopped = true
	c.loop.RunInLoop(func() {
		c.loop.Cancel(c.retryTimer)
		c.resetChannel()
	})
}

func (c *Connector) connect() {
	fd, err := sockets.CreateNonblocking()
	if err != nil {
		logging.Logger.WithError(err).Error("connector: failed to create socket")
		return
	}

	err = sockets.Connect(fd, c.address)
	switch {
	case err == nil, err == unix.EINPROGRESS:
		c.connecting_(fd)
	case err == unix.EAGAIN, err == unix.EADDRINUSE, err == unix.EADDRNOTAVAIL, err == unix.ECONNREFUSED, err == unix.ENETUNREACH:
		_ = unix.Close(fd)
		c.retry()
	default:
		logging.Logger.WithError(err).WithField("address", c.address).Warn("connector: connect error")
		_ = unix.Close(fd)
	}
}

func (c *Connector) connecting_(fd int) {
	c.fd = fd
	c.state = common.ConnectorConnecting

	c.ch = channel.New(c.loop, fd)
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetErrorCallback(c.handleError)
	c.ch.DoNotLogHup()
	c.ch.EnableWriting()
}

func (c *Connector) handleWrite() {
	if c.state != common.ConnectorConnecting {
		return
	}

	fd := c.removeAndResetChannel()

	if err := sockets.GetSocketError(fd); err != nil {
		logging.Logger.WithError(err).WithField("address", c.address).Warn("connector: delayed connect error")
		_ = unix.Close(fd)
		c.retry()
		return
	}

	if sockets.IsSelfConnect(fd) {
		logging.Logger.WithField("address", c.address).Warn(reactorerr.ErrSelfConnect.Error())
		_ = unix.Close(fd)
		c.retry()
		return
	}

	c.state = common.ConnectorConnected
	if c.onConnected != nil {
		c.onConnected(fd)
	}
}

func (c *Connector) handleError() {
	if c.state != common.ConnectorConnecting {
		return
	}
	fd := c.removeAndResetChannel()
	if err := sockets.GetSocketError(fd); err != nil {
		logging.Logger.WithError(err).WithField("address", c.address).Warn("connector: socket error while connecting")
	}
	_ = unix.Close(fd)
	c.retry()
}

func (c *Connector) removeAndResetChannel() int {
	fd := c.fd
	c.resetChannel()
	return fd
}

func (c *Connector) resetChannel() {
	if c.ch != nil {
		c.ch.DisableAll()
		c.ch.Remove()
		c.ch = nil
	}
}

// retry schedules another connect attempt with exponential backoff,
// doubling retryDelay up to maxRetryDelay.
func (c *Connector) retry() {
	c.state = common.ConnectorDisconnected
	if c.stopped {
		return
	}
	logging.Logger.WithField("address", c.address).WithField("delay", c.retryDelay).Info("connector: retrying")
	c.retryTimer = c.loop.RunAfter(c.retryDelay, c.startInLoop)
	c.retryDelay *= 2
	if c.retryDelay > maxRetryDelay {
		c.retryDelay = maxRetryDelay
	}
}
