package jsonrpc2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Conn manages reading/writing JSON-RPC messages via a Stream. Writes are
// serialized so two concurrent emissions can never interleave bytes on the
// wire.
type Conn struct {
	stream *Stream
	mu     sync.Mutex
	closed bool
}

// NewConn creates a new connection manager.
func NewConn(stream *Stream) *Conn {
	return &Conn{stream: stream}
}

// Read decodes the next message from the stream. It blocks until a message
// is received or an error occurs.
//
// A malformed frame or body yields a *FrameError: the caller should log it
// and keep reading. Any other error (EOF, closed pipe, context
// cancellation) is fatal and the connection should be torn down.
func (c *Conn) Read(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	body, err := c.stream.ReadMessage()
	if err != nil {
		if IsFrameError(err) {
			return nil, err
		}
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		return nil, err
	}

	var base struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(body, &base); err != nil {
		return nil, &FrameError{Err: fmt.Errorf("decode base message: %w", err)}
	}

	hasID := len(base.ID) > 0 && string(base.ID) != "null"

	if base.Method != "" {
		if hasID {
			var req RequestMessage
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, &FrameError{Err: fmt.Errorf("decode request: %w", err)}
			}
			return &req, nil
		}
		var ntf NotificationMessage
		if err := json.Unmarshal(body, &ntf); err != nil {
			return nil, &FrameError{Err: fmt.Errorf("decode notification: %w", err)}
		}
		return &ntf, nil
	}

	if hasID {
		// This endpoint is a server, not a client invoking requests; the
		// dispatcher discards any response it reads, but a generic Conn
		// still needs to be able to decode one.
		var resp ResponseMessage
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &FrameError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return &resp, nil
	}

	return nil, &FrameError{Err: fmt.Errorf("message is neither request, notification, nor response")}
}

// Write encodes and sends a message to the stream. Safe for concurrent use.
func (c *Conn) Write(ctx context.Context, msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return io.ErrClosedPipe
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return c.stream.WriteMessage(msg)
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.stream.Close()
}
