package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akhenakh/lspgo-core/internal/stream"
)

// HandlerFunc is the shape every entry in the handler table reduces to.
// The returned value is coerced into a result stream: if it is already a
// *stream.Stream it is used as-is, otherwise it is folded into a
// one-item stream by the dispatcher.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Typed adapts a strongly-typed handler into a HandlerFunc, decoding
// params into a fresh *T before calling fn. A nil/absent params payload
// decodes into the zero value of T.
func Typed[T any](fn func(ctx context.Context, params *T) (any, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		p := new(T)
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, p); err != nil {
				return nil, fmt.Errorf("decode params: %w", err)
			}
		}
		return fn(ctx, p)
	}
}

// TypedStream is Typed for handlers that produce a result stream directly,
// such as a workspace/symbol search that emits matches incrementally.
func TypedStream[T any](fn func(ctx context.Context, params *T) (*stream.Stream, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		p := new(T)
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, p); err != nil {
				return nil, fmt.Errorf("decode params: %w", err)
			}
		}
		return fn(ctx, p)
	}
}

// HandlerTable maps LSP method handler keys (see methodKey) to HandlerFunc.
type HandlerTable struct {
	handlers map[string]HandlerFunc
}

// NewHandlerTable returns an empty table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{handlers: make(map[string]HandlerFunc)}
}

// Register associates fn with the handler key derived from method.
func (t *HandlerTable) Register(method string, fn HandlerFunc) {
	t.handlers[methodKey(method)] = fn
}

func (t *HandlerTable) lookup(method string) (HandlerFunc, bool) {
	fn, ok := t.handlers[methodKey(method)]
	return fn, ok
}

// Lookup exposes handler resolution for callers outside this package,
// e.g. a router that needs to confirm what it just registered.
func (t *HandlerTable) Lookup(method string) (HandlerFunc, bool) {
	return t.lookup(method)
}

func coerceStream(value any, err error) *stream.Stream {
	if s, ok := value.(*stream.Stream); ok {
		return s
	}
	return stream.Of(value, err)
}
