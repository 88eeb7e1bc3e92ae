//go:build linux

package poller

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/channel"
)

// initEventListSize is the starting capacity of the events output
// buffer; Poll grows it 2x when a wait fills it, capped at
// maxEventListSize.
const initEventListSize = 16
const maxEventListSize = 65536

// epollPoller is the readiness-set backend: it owns an epoll fd and
// tracks membership via Channel.Index as a {New, Added, Deleted}
// tri-state to decide ADD/MOD/DEL.
type epollPoller struct {
	epfd     int
	events   []unix.EpollEvent
	channels map[int]*channel.Channel
}

func newEpollPoller() (*epollPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:     fd,
		events:   make([]unix.EpollEvent, initEventListSize),
		channels: make(map[int]*channel.Channel),
	}, nil
}

func (p *epollPoller) Poll(timeoutMs int) (time.Time, []*channel.Channel, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, err
	}

	active := make([]*channel.Channel, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(channel.Events(ev.Events))
		active = append(active, ch)
	}

	if n == len(p.events) && len(p.events) < maxEventListSize {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}

	return now, active, nil
}

func (p *epollPoller) UpdateChannel(ch *channel.Channel) {
	switch ch.Index {
	case channel.StateNew, channel.StateDeleted:
		if ch.IsNoneEvent() {
			return
		}
		p.channels[ch.Fd()] = ch
		if err := p.ctl(unix.EPOLL_CTL_ADD, ch); err != nil {
			return
		}
		ch.Index = channel.StateAdded
	default: // StateAdded
		if ch.IsNoneEvent() {
			_ = p.ctl(unix.EPOLL_CTL_DEL, ch)
			ch.Index = channel.StateDeleted
			return
		}
		_ = p.ctl(unix.EPOLL_CTL_MOD, ch)
	}
}

func (p *epollPoller) RemoveChannel(ch *channel.Channel) {
	delete(p.channels, ch.Fd())
	if ch.Index == channel.StateAdded {
		_ = p.ctl(unix.EPOLL_CTL_DEL, ch)
	}
	ch.Index = channel.StateNew
}

func (p *epollPoller) HasChannel(ch *channel.Channel) bool {
	_, ok := p.channels[ch.Fd()]
	return ok
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func (p *epollPoller) ctl(op int, ch *channel.Channel) error {
	ev := unix.EpollEvent{
		Events: uint32(ch.Events()),
		Fd:     int32(ch.Fd()),
	}
	return unix.EpollCtl(p.epfd, op, ch.Fd(), &ev)
}
