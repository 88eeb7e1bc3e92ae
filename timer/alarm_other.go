//go:build !linux

package timer

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pipeAlarm is the portable fallback for platforms without timerfd: a
// self-pipe woken by a runtime timer, the same "self-pipe" idea the
// teacher's server/acceptor.go applies to eventfd wakeups on the
// platforms that lack one.
type pipeAlarm struct {
	mu        sync.Mutex
	readFd    int
	writeFd   int
	runtimeTm *time.Timer
}

func newAlarm() (alarm, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &pipeAlarm{readFd: fds[0], writeFd: fds[1]}, nil
}

func (a *pipeAlarm) Fd() int { return a.readFd }

func (a *pipeAlarm) Arm(at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runtimeTm != nil {
		a.runtimeTm.Stop()
		a.runtimeTm = nil
	}
	if at.IsZero() {
		return nil
	}
	d := time.Until(at)
	if d < time.Microsecond {
		d = time.Microsecond
	}
	a.runtimeTm = time.AfterFunc(d, func() {
		_, _ = unix.Write(a.writeFd, []byte{1})
	})
	return nil
}

func (a *pipeAlarm) Drain() error {
	var buf [64]byte
	for {
		n, err := unix.Read(a.readFd, buf[:])
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

func (a *pipeAlarm) Close() error {
	a.mu.Lock()
	if a.runtimeTm != nil {
		a.runtimeTm.Stop()
	}
	a.mu.Unlock()
	_ = unix.Close(a.writeFd)
	return unix.Close(a.readFd)
}
