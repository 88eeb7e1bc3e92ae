package tcp

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ikilobyte/reactor/channel"
	"github.com/ikilobyte/reactor/logging"
	"github.com/ikilobyte/reactor/sockets"
)

// NewConnectionCallback receives an accepted connection's raw fd and
// peer address; the caller (TcpServer) is responsible for wrapping it
// in a Connection on the chosen I/O loop.
type NewConnectionCallback func(fd int, peerAddr net.Addr)

// Acceptor binds and listens on one address on the base loop, grounded
// on the netman server's acceptor_linux.go and muduo's Acceptor.cc (the
// idleFd EMFILE trick specifically).
type Acceptor struct {
	loop   Loop
	listenFd int
	ch     *channel.Channel
	idleFd int

	listening bool
	callback  NewConnectionCallback
}

// NewAcceptor creates a non-blocking listening socket bound to address.
func NewAcceptor(loop Loop, address string, reuseAddr, reusePort bool) (*Acceptor, error) {
	fd, err := sockets.CreateNonblocking()
	if err != nil {
		return nil, err
	}
	if err := sockets.BindAndListen(fd, address, reuseAddr, reusePort); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	a := &Acceptor{
		loop:     loop,
		listenFd: fd,
		idleFd:   idleFd,
	}
	a.ch = channel.New(loop, fd)
	a.ch.SetReadCallback(a.handleRead)
	return a, nil
}

func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) { a.callback = cb }

// Listen enables reading on the listening Channel; idempotent.
func (a *Acceptor) Listen() {
	a.loop.AssertInLoopThread()
	if a.listening {
		return
	}
	a.listening = true
	a.ch.EnableReading()
}

// handleRead accepts in a tight loop (level-triggered poll(2)/epoll
// report readiness again next cycle if more connections remain), and
// applies muduo's idleFd trick when the process is out of descriptors.
func (a *Acceptor) handleRead(_ time.Time) {
	for {
		fd, addr, err := sockets.Accept4(a.listenFd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EMFILE {
				a.handleEMFILE()
				return
			}
			logging.Logger.WithError(err).Warn("tcp: accept error")
			return
		}
		if a.callback != nil {
			a.callback(fd, addr)
		} else {
			_ = unix.Close(fd)
		}
	}
}

// handleEMFILE frees the reserved idle fd to let accept succeed, then
// immediately closes the accepted connection to shed it, and reopens
// the idle fd — preventing an EMFILE busy-loop (muduo's Acceptor::handleRead).
func (a *Acceptor) handleEMFILE() {
	_ = unix.Close(a.idleFd)
	fd, _, err := unix.Accept(a.listenFd)
	if err == nil {
		_ = unix.Close(fd)
	}
	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		logging.Logger.WithError(err).Error("tcp: failed to reopen idle fd after EMFILE")
		return
	}
	a.idleFd = idleFd
}

// listenAddr returns the address actually bound, resolving an ephemeral
// (":0") port to the one the kernel assigned.
func (a *Acceptor) listenAddr() string {
	sa, err := unix.Getsockname(a.listenFd)
	if err != nil {
		return ""
	}
	addr, ok := sockets.SockaddrToAddr(sa).(*net.TCPAddr)
	if !ok {
		return ""
	}
	ip := addr.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return fmt.Sprintf("%s:%d", ip.String(), addr.Port)
}

// Close releases the listening and idle fds.
func (a *Acceptor) Close() error {
	_ = unix.Close(a.idleFd)
	return unix.Close(a.listenFd)
}
