//go:build linux

package poller

import "testing"

func TestEpollPollerReportsReadiness(t *testing.T) {
	p, err := newEpollPoller()
	if err != nil {
		t.Fatalf("newEpollPoller: %v", err)
	}
	defer p.Close()
	testPollerReportsReadiness(t, p)
}
