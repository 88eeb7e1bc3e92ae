//go:build !linux

package loop

import "golang.org/x/sys/unix"

// pipeWaker is the portable fallback for platforms without eventfd.
type pipeWaker struct {
	readFd  int
	writeFd int
}

func newWaker() (waker, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &pipeWaker{readFd: fds[0], writeFd: fds[1]}, nil
}

func (w *pipeWaker) Fd() int { return w.readFd }

func (w *pipeWaker) Notify() error {
	_, err := unix.Write(w.writeFd, []byte{1})
	return err
}

func (w *pipeWaker) Drain() error {
	var buf [64]byte
	for {
		n, err := unix.Read(w.readFd, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return err
		}
		if n < len(buf) {
			return nil
		}
	}
}

func (w *pipeWaker) Close() error {
	_ = unix.Close(w.writeFd)
	return unix.Close(w.readFd)
}
