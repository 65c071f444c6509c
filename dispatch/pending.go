package dispatch

import (
	"context"
	"sync"

	"github.com/akhenakh/lspgo-core/jsonrpc2"
)

// pendingTable maps an in-flight request id to the context.CancelFunc that
// tears down its handler. Access is mutex-protected: each request's
// handler runs on its own goroutine, so the map itself needs
// synchronization even though the dispatcher reads messages one at a time.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]context.CancelFunc)}
}

func (p *pendingTable) add(id jsonrpc2.ID, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[id.Key()] = cancel
}

// remove deletes the entry for id, reporting whether it was still
// present. A false return means the cancel path already claimed this id.
func (p *pendingTable) remove(id jsonrpc2.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[id.Key()]
	delete(p.entries, id.Key())
	return ok
}

// cancel invokes and removes the entry for id, reporting whether one
// existed. A second cancellation of the same id is therefore a no-op.
func (p *pendingTable) cancel(id jsonrpc2.ID) bool {
	p.mu.Lock()
	cancel, ok := p.entries[id.Key()]
	if ok {
		delete(p.entries, id.Key())
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// cancelAll cancels and empties every pending entry (exit/transport error).
func (p *pendingTable) cancelAll() {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]context.CancelFunc)
	p.mu.Unlock()
	for _, cancel := range entries {
		cancel()
	}
}

func (p *pendingTable) empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) == 0
}
