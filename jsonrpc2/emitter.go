package jsonrpc2

import (
	"context"
	"sync"
)

// Emitter wraps a Conn's read loop and fans parsed inbound messages out to
// any number of subscribers. It exists so more than one observer — the
// dispatcher, an optional logger — can consume the same inbound stream
// without each running its own framing read.
type Emitter struct {
	conn *Conn

	mu        sync.Mutex
	onMessage []func(msg interface{})
	onError   []func(err error)
	onClose   []func()
}

// NewEmitter wraps conn. Call Run to start pumping messages to subscribers.
func NewEmitter(conn *Conn) *Emitter {
	return &Emitter{conn: conn}
}

// OnMessage registers a listener for parsed request/notification/response
// messages. Listener count is unbounded. Returns an unsubscribe func.
func (e *Emitter) OnMessage(fn func(msg interface{})) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMessage = append(e.onMessage, fn)
	idx := len(e.onMessage) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.onMessage[idx] = nil
	}
}

// OnError registers a listener for read errors: non-fatal framing errors,
// and the fatal error that ends Run (which is then followed by close).
func (e *Emitter) OnError(fn func(err error)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = append(e.onError, fn)
	idx := len(e.onError) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.onError[idx] = nil
	}
}

// OnClose registers a listener invoked each time Run's read loop exits:
// because the transport closed, errored fatally, or Run's ctx was done.
func (e *Emitter) OnClose(fn func()) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClose = append(e.onClose, fn)
	idx := len(e.onClose) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.onClose[idx] = nil
	}
}

// Run pumps messages until the connection errors fatally or ctx is done.
// It returns the terminal error (io.EOF for a clean close).
func (e *Emitter) Run(ctx context.Context) error {
	defer e.fireClose()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := e.conn.Read(ctx)
		if err != nil {
			if IsFrameError(err) {
				e.fireError(err)
				continue
			}
			e.fireError(err)
			return err
		}
		e.fireMessage(msg)
	}
}

func (e *Emitter) fireMessage(msg interface{}) {
	e.mu.Lock()
	listeners := append([]func(interface{}){}, e.onMessage...)
	e.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(msg)
		}
	}
}

func (e *Emitter) fireError(err error) {
	e.mu.Lock()
	listeners := append([]func(error){}, e.onError...)
	e.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(err)
		}
	}
}

func (e *Emitter) fireClose() {
	e.mu.Lock()
	listeners := append([]func(){}, e.onClose...)
	e.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn()
		}
	}
}
