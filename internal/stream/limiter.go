package stream

import "sync"

// ipGate caps concurrent stream connections per client address. There is
// no global cap; the server's listener limits bound the total.
type ipGate struct {
	mu     sync.Mutex
	active map[string]int
	limit  int
}

func newIPGate(limit int) *ipGate {
	return &ipGate{active: make(map[string]int), limit: limit}
}

// tryAcquire reserves a stream slot for addr and reports how many streams
// the address holds afterwards. ok is false when addr is already at the cap.
func (g *ipGate) tryAcquire(addr string) (held int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held = g.active[addr]
	if held >= g.limit {
		return held, false
	}
	held++
	g.active[addr] = held
	return held, true
}

// release frees one slot for addr, dropping the map entry once the address
// has no streams left.
func (g *ipGate) release(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.active[addr] - 1; n > 0 {
		g.active[addr] = n
	} else {
		delete(g.active, addr)
	}
}
