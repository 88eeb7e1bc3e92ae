// Package poller implements the pluggable I/O readiness demultiplexer:
// a level-triggered "poll" array backend and a Linux "epoll"
// readiness-set backend, chosen through an environment-configurable
// default that is looked up each time a default backend is constructed.
// Neither backend keeps mutable global state.
package poller

import (
	"os"
	"runtime"
	"time"

	"github.com/ikilobyte/reactor/channel"
)

// Kind names one of the two demultiplexer backends this package offers.
type Kind string

const (
	KindPoll  Kind = "poll"
	KindEpoll Kind = "epoll"
)

// envVar is read by every DefaultKind call to pick the default backend;
// config.LoadEnv can set it from a .env file before the first EventLoop
// is constructed.
const envVar = "REACTOR_POLLER"

// Poller is the contract both backends satisfy. Every method must run
// on the owning loop's thread; nothing here takes a lock.
type Poller interface {
	// Poll blocks up to timeoutMs milliseconds for readiness, returning
	// the timestamp taken immediately after the kernel wait returns and
	// the channels whose ready masks were updated.
	Poll(timeoutMs int) (time.Time, []*channel.Channel, error)
	UpdateChannel(ch *channel.Channel)
	RemoveChannel(ch *channel.Channel)
	HasChannel(ch *channel.Channel) bool
	Close() error
}

// DefaultKind resolves the process-wide default backend: the
// REACTOR_POLLER environment variable if set to a recognized value,
// else epoll on Linux and the portable poll backend everywhere else.
func DefaultKind() Kind {
	switch Kind(os.Getenv(envVar)) {
	case KindEpoll:
		return KindEpoll
	case KindPoll:
		return KindPoll
	}
	if runtime.GOOS == "linux" {
		return KindEpoll
	}
	return KindPoll
}

// New constructs the default backend for this process.
func New() (Poller, error) {
	return NewKind(DefaultKind())
}

// NewKind constructs a specific backend, falling back to the portable
// poll backend if epoll was requested on a non-Linux platform.
func NewKind(kind Kind) (Poller, error) {
	if kind == KindEpoll && runtime.GOOS == "linux" {
		return newEpollPoller()
	}
	return newPollPoller(), nil
}
