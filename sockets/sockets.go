// Package sockets wraps the non-blocking socket syscalls used by the
// core, grounded on the teacher's server/socket_linux.go,
// server/socket_darwin.go and server/acceptor_linux.go, and on
// muduo's SocketsOps.cc for the operation set and errno handling.
package sockets

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// CreateNonblocking creates a non-blocking, close-on-exec TCP socket,
// mirroring sockets::createNonblockingOrDie in SocketsOps.cc.
func CreateNonblocking() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
}

// BindAndListen binds fd to address ("host:port") and starts listening.
// reuseAddr/reusePort mirror the SO_REUSEADDR/SO_REUSEPORT options
// listed in spec.md section 6.
func BindAndListen(fd int, address string, reuseAddr, reusePort bool) error {
	if reuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fmt.Errorf("sockets: SO_REUSEADDR: %w", err)
		}
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return fmt.Errorf("sockets: SO_REUSEPORT: %w", err)
		}
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return fmt.Errorf("sockets: resolve %q: %w", address, err)
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}

	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("sockets: bind %q: %w", address, err)
	}
	return unix.Listen(fd, MaxListenerBacklog())
}

// Accept4 accepts a connection with SOCK_NONBLOCK|SOCK_CLOEXEC already
// applied by the kernel, turns TCP_NODELAY off (Nagle stays on until the
// user calls SetTCPNoDelay) and turns SO_KEEPALIVE on.
func Accept4(listenFd int) (fd int, addr net.Addr, err error) {
	connFd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	if err := unix.SetsockoptInt(connFd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 0); err != nil {
		_ = unix.Close(connFd)
		return -1, nil, err
	}
	if err := SetKeepAlive(connFd, true); err != nil {
		_ = unix.Close(connFd)
		return -1, nil, err
	}
	return connFd, SockaddrToAddr(sa), nil
}

// SetTCPNoDelay toggles Nagle's algorithm, user-controllable per
// spec.md section 6.
func SetTCPNoDelay(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// SetKeepAlive toggles SO_KEEPALIVE on an accepted connection.
func SetKeepAlive(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
}

// SetNonblocking flips O_NONBLOCK on fd. Connector does not use it: its
// sockets are created non-blocking and stay that way.
func SetNonblocking(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

// Connect issues a non-blocking connect and returns the raw errno so
// callers can branch on EINPROGRESS vs a hard failure (spec.md 4.8).
func Connect(fd int, address string) error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return err
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return unix.Connect(fd, sa)
}

// GetSocketError reads SO_ERROR, used by Connector after a writable
// notification to determine whether the connect actually succeeded.
func GetSocketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// IsSelfConnect reports whether fd connected to itself, mirroring
// sockets::isSelfConnect (SocketsOps.cc), a corner case a non-blocking
// connect to a local port can hit when the kernel reuses the ephemeral
// source port as the destination.
func IsSelfConnect(fd int) bool {
	local, err := unix.Getsockname(fd)
	if err != nil {
		return false
	}
	peer, err := unix.Getpeername(fd)
	if err != nil {
		return false
	}
	l, lok := local.(*unix.SockaddrInet4)
	p, pok := peer.(*unix.SockaddrInet4)
	if !lok || !pok {
		return false
	}
	return l.Port == p.Port && l.Addr == p.Addr
}

// ShutdownWrite half-closes the write side, used by
// TcpConnection.shutdownInLoop.
func ShutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

// SockaddrToAddr converts a raw unix.Sockaddr into a net.Addr, the way
// the teacher's util.SockaddrToTCPOrUnixAddr does.
func SockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrUnix:
		return &net.UnixAddr{Name: v.Name, Net: "unix"}
	default:
		return nil
	}
}

// MaxListenerBacklog mirrors the teacher's util.MaxListenerBacklog:
// read the kernel's configured backlog ceiling, falling back to
// SOMAXCONN.
func MaxListenerBacklog() int {
	fd, err := os.Open("/proc/sys/net/core/somaxconn")
	if err != nil {
		return unix.SOMAXCONN
	}
	defer fd.Close()

	rd := bufio.NewReader(fd)
	line, err := rd.ReadString('\n')
	if err != nil {
		return unix.SOMAXCONN
	}

	fields := strings.Fields(line)
	if len(fields) < 1 {
		return unix.SOMAXCONN
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n == 0 {
		return unix.SOMAXCONN
	}
	if n > 1<<16-1 {
		n = 1<<16 - 1
	}
	return n
}
