package socket

import (
	"sync"
)

// ackTable tracks acknowledgements this side is waiting for.
type ackTable struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]AckHandler
}

func newAckTable() *ackTable {
	return &ackTable{pending: make(map[uint64]AckHandler)}
}

func (t *ackTable) register(h AckHandler) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.pending[t.next] = h
	return t.next
}

func (t *ackTable) cancel(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

// resolve runs and forgets the handler for id. Unknown ids are ignored.
func (t *ackTable) resolve(id uint64, args Args) bool {
	t.mu.Lock()
	h, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()

	if !ok {
		return false
	}
	if h != nil {
		h(args)
	}
	return true
}

// drop forgets every pending acknowledgement without calling it.
func (t *ackTable) drop() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.pending)
	t.pending = make(map[uint64]AckHandler)
	return n
}

func (t *ackTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
