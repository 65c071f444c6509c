// Package stream models the lazy, finite, non-restartable result sequence
// a handler produces. A bare single value is modeled as a stream of one
// item; a multi-item stream backs $/partialResult.
package stream

import (
	"context"

	"github.com/akhenakh/lspgo-core/internal/jsonpatch"
)

// Item is one element of a result stream: either a patch operation to fold
// into the accumulator, or a terminal error.
type Item struct {
	Patch jsonpatch.Operation
	Err   error
}

// Stream is a read-only handle to a producer's output. It is finite
// (closed after the last item or an error item) and non-restartable (it
// can be ranged over exactly once).
type Stream struct {
	items chan Item
}

// C exposes the underlying channel for range/select consumption.
func (s *Stream) C() <-chan Item { return s.items }

// Producer is the write side paired with a Stream.
type Producer struct {
	items  chan Item
	closed chan struct{}
}

// New creates a linked Stream/Producer pair with the given item buffer.
func New(buffer int) (*Stream, *Producer) {
	ch := make(chan Item, buffer)
	return &Stream{items: ch}, &Producer{items: ch, closed: make(chan struct{})}
}

// Emit sends a patch item, blocking until the consumer reads it or ctx is
// cancelled. Emit is a no-op once Close/Fail has been called.
func (p *Producer) Emit(ctx context.Context, op jsonpatch.Operation) error {
	select {
	case <-p.closed:
		return nil
	default:
	}
	select {
	case p.items <- Item{Patch: op}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return nil
	}
}

// Close terminates the stream successfully. Calls after the first (or
// after Fail) are no-ops.
func (p *Producer) Close() {
	select {
	case <-p.closed:
		return
	default:
	}
	close(p.closed)
	close(p.items)
}

// Fail terminates the stream with a terminal error item.
func (p *Producer) Fail(err error) {
	select {
	case <-p.closed:
		return
	default:
	}
	close(p.closed)
	p.items <- Item{Err: err}
	close(p.items)
}

// Of wraps a synchronous (value, error) pair into a one-item stream. In Go
// a handler call and awaiting its result are the same step, since the
// dispatcher already runs the handler on its own goroutine, so a plain
// returned value and an awaited one collapse into this single case.
func Of(value any, err error) *Stream {
	s, p := New(1)
	if err != nil {
		p.Fail(err)
		return s
	}
	p.items <- Item{Patch: jsonpatch.Root(value)}
	p.Close()
	return s
}
