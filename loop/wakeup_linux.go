//go:build linux

package loop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// eventfdWaker wraps a Linux eventfd, the primitive muduo's EventLoop
// uses for its wakeupFd_ (EventLoop.cc: createEventfd via eventfd(2)).
type eventfdWaker struct {
	fd int
}

func newWaker() (waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdWaker{fd: fd}, nil
}

func (w *eventfdWaker) Fd() int { return w.fd }

func (w *eventfdWaker) Notify() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	return err
}

func (w *eventfdWaker) Drain() error {
	var buf [8]byte
	_, err := unix.Read(w.fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (w *eventfdWaker) Close() error {
	return unix.Close(w.fd)
}
