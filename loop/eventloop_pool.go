package loop

import (
	"github.com/dolthub/maphash"
	"golang.org/x/sync/errgroup"
)

// Pool is muduo's EventLoopThreadPool: a fixed set of Thread-owned
// loops that new connections are handed out to round-robin or by hash,
// implementing the "one loop per thread" side of spec.md section 4.4's
// concurrency model. A Pool of size 0 hands out the base loop for
// every connection, matching muduo's single-threaded degenerate case.
type Pool struct {
	baseLoop *EventLoop
	threads  []*Thread
	next     int
	hasher   maphash.Hasher[string]
}

// NewPool constructs a Pool of n worker loops, or none if n <= 0 (every
// connection is then handled on baseLoop itself). started is invoked on
// each worker loop before it begins looping, mirroring
// EventLoopThreadPool::start's threadInitCallback.
func NewPool(baseLoop *EventLoop, n int, started func(*EventLoop)) (*Pool, error) {
	p := &Pool{
		baseLoop: baseLoop,
		hasher:   maphash.NewHasher[string](),
	}
	if n <= 0 {
		return p, nil
	}

	threads := make([]*Thread, n)
	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			threads[i] = NewThread(started)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.threads = threads
	return p, nil
}

// NextLoop returns the next loop in round-robin order, or baseLoop if
// the pool has no worker threads.
func (p *Pool) NextLoop() *EventLoop {
	if len(p.threads) == 0 {
		return p.baseLoop
	}
	l := p.threads[p.next].Loop()
	p.next = (p.next + 1) % len(p.threads)
	return l
}

// LoopForHash returns a deterministic loop for key, so all traffic for
// a given key (e.g. a peer address) is always dispatched to the same
// worker loop.
func (p *Pool) LoopForHash(key string) *EventLoop {
	if len(p.threads) == 0 {
		return p.baseLoop
	}
	idx := int(p.hasher.Hash(key) % uint64(len(p.threads)))
	return p.threads[idx].Loop()
}

// AllLoops returns every worker loop, or just baseLoop if the pool has
// none.
func (p *Pool) AllLoops() []*EventLoop {
	if len(p.threads) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	loops := make([]*EventLoop, len(p.threads))
	for i, t := range p.threads {
		loops[i] = t.Loop()
	}
	return loops
}
