package poller

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/channel"
)

// pollPoller is the level-triggered array backend: a dense vector of
// pollfd-like structs plus a map from fd to Channel, reconciled on
// every UpdateChannel/RemoveChannel call.
type pollPoller struct {
	pollfds  []unix.PollFd
	channels map[int]*channel.Channel
}

func newPollPoller() *pollPoller {
	return &pollPoller{
		channels: make(map[int]*channel.Channel),
	}
}

func (p *pollPoller) Poll(timeoutMs int) (time.Time, []*channel.Channel, error) {
	n, err := unix.Poll(p.pollfds, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, err
	}
	if n == 0 {
		return now, nil, nil
	}

	active := make([]*channel.Channel, 0, n)
	for _, pfd := range p.pollfds {
		if pfd.Revents == 0 {
			continue
		}
		ch, ok := p.channels[int(pfd.Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(channel.Events(pfd.Revents))
		active = append(active, ch)
	}
	return now, active, nil
}

func (p *pollPoller) UpdateChannel(ch *channel.Channel) {
	if ch.Index == channel.StateNew {
		p.channels[ch.Fd()] = ch
		p.pollfds = append(p.pollfds, unix.PollFd{
			Fd:     int32(ch.Fd()),
			Events: int16(ch.Events()),
		})
		ch.Index = channel.StateAdded
		return
	}

	for i := range p.pollfds {
		if int(p.pollfds[i].Fd) == ch.Fd() {
			p.pollfds[i].Events = int16(ch.Events())
			p.pollfds[i].Revents = 0
			return
		}
	}
}

func (p *pollPoller) RemoveChannel(ch *channel.Channel) {
	delete(p.channels, ch.Fd())
	for i := range p.pollfds {
		if int(p.pollfds[i].Fd) == ch.Fd() {
			p.pollfds = append(p.pollfds[:i], p.pollfds[i+1:]...)
			ch.Index = channel.StateDeleted
			return
		}
	}
}

func (p *pollPoller) HasChannel(ch *channel.Channel) bool {
	_, ok := p.channels[ch.Fd()]
	return ok
}

func (p *pollPoller) Close() error { return nil }
