package tcp

import (
	"sync"

	"github.com/dolthub/swiss"
)

// registry is the name -> TcpConnection map every Server keeps,
// backed by a swiss-table map (github.com/dolthub/swiss) for O(1) amortized
// lookup under the churn of many short-lived connections. Guarded by a
// mutex because TcpServer.removeConnection is called from whichever
// worker loop owns the closing connection, not necessarily the loop
// that accepted it.
type registry struct {
	mu sync.Mutex
	m  *swiss.Map[string, *Connection]
}

func newRegistry() *registry {
	return &registry{m: swiss.NewMap[string, *Connection](16)}
}

func (r *registry) put(name string, c *Connection) {
	r.mu.Lock()
	r.m.Put(name, c)
	r.mu.Unlock()
}

func (r *registry) remove(name string) {
	r.mu.Lock()
	r.m.Delete(name)
	r.mu.Unlock()
}

func (r *registry) get(name string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.Get(name)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.Count()
}

func (r *registry) each(fn func(name string, c *Connection) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.Iter(fn)
}
