// Package channel implements the per-fd event dispatcher, grounded on
// muduo's Channel.h. It doesn't own the fd (the
// fd is owned by a Socket, or by a TcpConnection wrapping one); a
// Channel is bound to exactly one loop and one fd for its whole life.
package channel

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/logging"
)

// Events is the interest/ready bitmask type. It reuses the POSIX poll(2)
// bit values (unix.POLLIN, POLLOUT, ...) as the canonical representation
// because those values are numerically identical to the epoll bit
// values on Linux (EPOLLIN==POLLIN, EPOLLOUT==POLLOUT, ...), so both
// demultiplexer backends in the poller package can share one Channel
// implementation without a translation layer.
type Events int16

const (
	EventNone  Events = 0
	EventRead  Events = Events(unix.POLLIN | unix.POLLPRI)
	EventWrite Events = Events(unix.POLLOUT)
)

// Loop is the subset of EventLoop a Channel needs; declared here rather
// than imported from the loop package to avoid an import cycle (loop
// imports channel to hold its wakeup/timerfd channels).
type Loop interface {
	UpdateChannel(ch *Channel)
	RemoveChannel(ch *Channel)
	AssertInLoopThread()
}

// index is the poller's tri-state channel-membership tag.
type index int

const (
	StateNew index = iota
	StateAdded
	StateDeleted
)

// Channel binds one fd to a loop and dispatches its ready events to
// user-registered callbacks. It optionally ties a weak reference to an
// owning object (a TcpConnection) so dispatch can promote it before
// invoking handlers, preventing use-after-free when a close races a
// read.
type Channel struct {
	loop    Loop
	fd      int
	events  Events
	revents Events
	Index   index // used by the poller for O(1) array/bookkeeping lookups

	tie           func() (interface{}, bool) // promotes a weak ref; nil if untied
	tied          bool
	eventHandling bool

	readCallback  func(receiveTime time.Time)
	writeCallback func()
	closeCallback func()
	errorCallback func()

	logHup bool
}

// New binds a Channel to loop and fd. The Channel starts with no
// interest and must be explicitly enabled for reading/writing.
func New(loop Loop, fd int) *Channel {
	return &Channel{
		loop:   loop,
		fd:     fd,
		Index:  StateNew,
		logHup: true,
	}
}

func (c *Channel) Fd() int        { return c.fd }
func (c *Channel) Events() Events { return c.events }
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }
func (c *Channel) IsReading() bool   { return c.events&EventRead != 0 }
func (c *Channel) IsWriting() bool   { return c.events&EventWrite != 0 }

// SetRevents is called by the poller after a wait cycle to record which
// events fired.
func (c *Channel) SetRevents(revents Events) { c.revents = revents }

func (c *Channel) SetReadCallback(cb func(time.Time)) { c.readCallback = cb }
func (c *Channel) SetWriteCallback(cb func())         { c.writeCallback = cb }
func (c *Channel) SetCloseCallback(cb func())         { c.closeCallback = cb }
func (c *Channel) SetErrorCallback(cb func())         { c.errorCallback = cb }

// DoNotLogHup suppresses the close-on-hangup diagnostic log line, used
// by Connector's transient probe channel where a hangup is routine.
func (c *Channel) DoNotLogHup() { c.logHup = false }

// Tie ties this Channel to an owner promoted via promote. promote
// should return (owner, true) while the owner is still alive, and
// (nil, false) once it has been finalized; HandleEvent no-ops on a
// failed promotion instead of dispatching into a freed connection.
func (c *Channel) Tie(promote func() (interface{}, bool)) {
	c.tie = promote
	c.tied = true
}

func (c *Channel) EnableReading() {
	c.events |= EventRead
	c.update()
}

func (c *Channel) EnableWriting() {
	c.events |= EventWrite
	c.update()
}

func (c *Channel) DisableWriting() {
	c.events &^= EventWrite
	c.update()
}

func (c *Channel) DisableAll() {
	c.events = EventNone
	c.update()
}

func (c *Channel) update() {
	c.loop.UpdateChannel(c)
}

// Remove must be called before the Channel (and its fd) are destroyed;
// it detaches the Channel from the poller's bookkeeping.
func (c *Channel) Remove() {
	c.loop.AssertInLoopThread()
	if !c.IsNoneEvent() {
		logging.Logger.WithField("fd", c.fd).Warn("channel removed while still holding interest")
	}
	c.loop.RemoveChannel(c)
}

// HandleEvent dispatches this Channel's revents to its callbacks, in
// priority order: hangup-with-no-read → close; error → error;
// read/priority → read; write → write. Close and read/write are
// mutually exclusive within one call.
func (c *Channel) HandleEvent(receiveTime time.Time) {
	if c.tied {
		if _, alive := c.tie(); !alive {
			return
		}
	}
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	if c.revents&Events(unix.POLLHUP) != 0 && c.revents&Events(unix.POLLIN) == 0 {
		if c.logHup {
			logging.Logger.WithField("fd", c.fd).Warn("channel: hangup with no readable data")
		}
		if c.closeCallback != nil {
			c.closeCallback()
		}
		return
	}

	if c.revents&Events(unix.POLLERR) != 0 || c.revents&Events(unix.POLLNVAL) != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}

	if c.revents&(EventRead|Events(unix.POLLHUP)) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}

	if c.revents&EventWrite != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
