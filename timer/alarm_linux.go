//go:build linux

package timer

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// timerfdAlarm wraps a Linux timerfd, the kernel primitive muduo's
// TimerQueue uses directly (TimerQueue.cc calls timerfd_create /
// timerfd_settime).
type timerfdAlarm struct {
	fd int
}

func newAlarm() (alarm, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &timerfdAlarm{fd: fd}, nil
}

func (a *timerfdAlarm) Fd() int { return a.fd }

func (a *timerfdAlarm) Arm(at time.Time) error {
	var spec unix.ItimerSpec
	if at.IsZero() {
		return unix.TimerfdSettime(a.fd, 0, &spec, nil)
	}
	d := time.Until(at)
	if d < time.Microsecond {
		d = time.Microsecond
	}
	spec.Value.Sec = int64(d / time.Second)
	spec.Value.Nsec = int64(d % time.Second)
	return unix.TimerfdSettime(a.fd, 0, &spec, nil)
}

func (a *timerfdAlarm) Drain() error {
	var buf [8]byte
	n, err := unix.Read(a.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return nil
		}
		return err
	}
	if n == 8 {
		_ = binary.LittleEndian.Uint64(buf[:]) // expiration count, informational only
	}
	return nil
}

func (a *timerfdAlarm) Close() error {
	return unix.Close(a.fd)
}
