package timer

// timerHeap orders Timers by (expiration, seq), the fire-order set of
// spec.md section 4.5 ("by (expiration, timer_id_ptr)"); seq stands in
// for address identity since Go pointers aren't orderable, while still
// guaranteeing a strict order for simultaneous expirations.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].expiration.Equal(h[j].expiration) {
		return h[i].seq < h[j].seq
	}
	return h[i].expiration.Before(h[j].expiration)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x interface{}) {
	*h = append(*h, x.(*Timer))
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
