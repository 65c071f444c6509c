package jsonrpc2

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Client issues requests and notifications over a Conn and correlates
// responses back to their caller. It also lets the remote end address
// requests back at this side (a reverse RPC), which the Master Router
// uses to let a back-end worker ask the front connection for file
// content it does not have cached locally.
type Client struct {
	conn    *Conn
	emitter *Emitter
	nextID  int64

	mu      sync.Mutex
	pending map[string]chan *ResponseMessage

	reverseMu sync.Mutex
	reverse   map[string]func(ctx context.Context, params json.RawMessage) (any, error)

	sharedEmitter bool
}

// NewClient wraps conn, routing responses to waiting Call invocations and
// requests/notifications to reverse handlers registered via OnRequest.
// Run must be called (typically on its own goroutine) to pump messages.
func NewClient(conn *Conn) *Client {
	return newClient(conn, NewEmitter(conn))
}

// NewClientOnEmitter builds a Client that subscribes to an emitter owned
// and pumped by someone else, instead of creating and running its own.
// This lets a single Conn carry both a Dispatcher serving inbound
// requests and a Client issuing reverse requests on the same wire: the
// front connection of the Master Router answers workspace/xfiles and
// textDocument/xcontent calls from a backend worker this way, without
// two independent read loops racing on the same Conn. Inbound requests
// for methods with no OnRequest handler are left to the emitter's other
// subscribers instead of being answered with MethodNotFound.
func NewClientOnEmitter(conn *Conn, emitter *Emitter) *Client {
	c := newClient(conn, emitter)
	c.sharedEmitter = true
	return c
}

func newClient(conn *Conn, emitter *Emitter) *Client {
	c := &Client{
		conn:    conn,
		emitter: emitter,
		pending: make(map[string]chan *ResponseMessage),
		reverse: make(map[string]func(ctx context.Context, params json.RawMessage) (any, error)),
	}
	c.emitter.OnMessage(c.handleMessage)
	c.emitter.OnClose(c.failPending)
	return c
}

// failPending unblocks every in-flight Call once the transport is gone;
// a response that never arrives must not strand its caller until the
// caller's own context fires.
func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan *ResponseMessage)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- &ResponseMessage{
			JSONRPC: Version,
			Error:   NewError(UnknownError, "connection closed before response arrived"),
		}
	}
}

// Run pumps inbound messages until the connection closes or ctx is done.
// Callers that built this Client with NewClientOnEmitter must instead run
// the shared emitter themselves; calling Run here would start a second,
// conflicting read loop over the same Conn.
func (c *Client) Run(ctx context.Context) error {
	return c.emitter.Run(ctx)
}

// OnRequest registers a handler for a method the remote end invokes on
// this side (a reverse request, e.g. workspace/xfiles answered by the
// front connection on behalf of a back-end worker).
func (c *Client) OnRequest(method string, fn func(ctx context.Context, params json.RawMessage) (any, error)) {
	c.reverseMu.Lock()
	defer c.reverseMu.Unlock()
	c.reverse[method] = fn
}

func (c *Client) handleMessage(msg interface{}) {
	switch m := msg.(type) {
	case *ResponseMessage:
		c.mu.Lock()
		ch, ok := c.pending[m.ID.Key()]
		if ok {
			delete(c.pending, m.ID.Key())
		}
		c.mu.Unlock()
		if ok {
			ch <- m
		}
	case *RequestMessage:
		go c.serveReverse(m)
	case *NotificationMessage:
		// Reverse notifications from a back-end worker are not part of
		// this core's surface; drop silently.
	}
}

func (c *Client) serveReverse(req *RequestMessage) {
	c.reverseMu.Lock()
	fn, ok := c.reverse[req.Method]
	c.reverseMu.Unlock()

	if !ok {
		if c.sharedEmitter {
			return
		}
		_ = c.conn.Write(context.Background(), &ResponseMessage{
			JSONRPC: Version,
			ID:      req.ID,
			Error:   NewErrorf(MethodNotFound, "method not found: %s", req.Method),
		})
		return
	}

	result, err := fn(context.Background(), req.Params)
	resp := &ResponseMessage{JSONRPC: Version, ID: req.ID}
	if err != nil {
		resp.Error = toReverseError(err)
	} else {
		raw, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = NewErrorf(InternalError, "marshal result: %v", merr)
		} else {
			resp.Result = raw
		}
	}
	_ = c.conn.Write(context.Background(), resp)
}

func toReverseError(err error) *ErrorObject {
	if eo, ok := err.(*ErrorObject); ok {
		return eo
	}
	return NewError(UnknownError, err.Error())
}

// Call sends a request and blocks until a response arrives or ctx is
// done. It returns the raw result payload on success.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	id := NewID(json.RawMessage(fmt.Sprintf("%d", atomic.AddInt64(&c.nextID, 1))))
	ch := make(chan *ResponseMessage, 1)

	c.mu.Lock()
	c.pending[id.Key()] = ch
	c.mu.Unlock()

	if err := c.conn.Write(ctx, &RequestMessage{JSONRPC: Version, ID: id, Method: method, Params: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id.Key())
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id.Key())
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Notify sends a notification with no expected response.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	return c.conn.Write(ctx, &NotificationMessage{JSONRPC: Version, Method: method, Params: raw})
}
