// Package memo coalesces concurrent calls sharing the same key into a
// single in-flight invocation, the way golang.org/x/sync/singleflight
// does, but with one addition: cancellation is reference-counted rather
// than all-or-nothing. Each caller supplies its own context; the
// underlying function only observes cancellation once every caller
// waiting on that key has given up, so one impatient caller never cuts
// the ground out from under others still waiting on the same answer.
package memo

import (
	"context"
	"sync"
)

// Group memoizes in-flight calls by key. The zero value is ready to use.
type Group struct {
	mu      sync.Mutex
	entries map[string]*call
}

type call struct {
	done   chan struct{}
	val    any
	err    error
	cancel context.CancelFunc
	refs   int
}

// Do runs fn for key, or joins an already in-flight call for the same
// key. fn receives a composite context that is cancelled only once every
// subscriber of this call has abandoned it (by its own ctx being done).
// The call's result is never cached past the point every subscriber has
// either received it or cancelled: a later Do with the same key always
// starts a fresh invocation.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	g.mu.Lock()
	if g.entries == nil {
		g.entries = make(map[string]*call)
	}

	c, inFlight := g.entries[key]
	if !inFlight {
		compositeCtx, cancel := context.WithCancel(context.Background())
		c = &call{done: make(chan struct{}), cancel: cancel, refs: 0}
		g.entries[key] = c
		g.mu.Unlock()

		go func() {
			c.val, c.err = fn(compositeCtx)
			close(c.done)

			g.mu.Lock()
			if g.entries[key] == c {
				delete(g.entries, key)
			}
			g.mu.Unlock()
		}()

		g.mu.Lock()
	}
	c.refs++
	g.mu.Unlock()

	select {
	case <-c.done:
		g.release(key, c, false)
		return c.val, c.err
	case <-ctx.Done():
		// This subscriber is abandoning the call, but the call itself
		// only dies once every subscriber has: if others are still
		// waiting, the shared computation keeps running and this
		// caller still gets its result when it settles, per the
		// coalescing contract. Only a subscriber's own departure that
		// happens to be the last one tears the upstream down, and even
		// then c.done still closes once fn observes that and returns.
		g.release(key, c, true)
		<-c.done
		return c.val, c.err
	}
}

// release decrements the subscriber count for c. If the count reaches
// zero before the call has settled, the composite context is cancelled
// and the entry is removed so the next Do call starts fresh.
func (g *Group) release(key string, c *call, abandoning bool) {
	g.mu.Lock()
	c.refs--
	if abandoning && c.refs == 0 && g.entries[key] == c {
		// Removing the entry in the same critical section as the final
		// decrement keeps a concurrent Do from joining a call whose
		// composite context is about to fire.
		delete(g.entries, key)
		g.mu.Unlock()
		c.cancel()
		return
	}
	g.mu.Unlock()
}
