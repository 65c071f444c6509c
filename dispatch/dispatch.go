// Package dispatch implements the JSON-RPC/LSP dispatcher: lifecycle
// state, the pending-request table, cancellation, result-stream folding,
// and tracing.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/akhenakh/lspgo-core/internal/jsonpatch"
	"github.com/akhenakh/lspgo-core/jsonrpc2"
	"github.com/akhenakh/lspgo-core/protocol"
)

// LSP method names the dispatcher treats specially, re-exported from
// protocol so callers outside this package don't need a second import
// for the handful of methods the dispatcher itself special-cases.
const (
	MethodInitialize    = protocol.MethodInitialize
	MethodShutdown      = protocol.MethodShutdown
	MethodExit          = protocol.MethodExit
	MethodCancelRequest = protocol.MethodCancelRequest
	MethodPartialResult = protocol.MethodPartialResult
)

// ShutdownFunc is invoked to synthesize a shutdown() call to the backend
// when the transport closes while the connection is still initialized.
type ShutdownFunc func(ctx context.Context)

// Dispatcher routes inbound JSON-RPC messages to handlers registered in a
// HandlerTable, enforcing the initialize → serve → shutdown → exit
// lifecycle and the request/response/cancellation/streaming contract
// expected of an LSP server endpoint.
type Dispatcher struct {
	conn   *jsonrpc2.Conn
	table  *HandlerTable
	logger *slog.Logger
	tracer trace.Tracer

	pending *pendingTable

	mu               sync.Mutex
	initialized      bool
	streamingCapable bool
	terminal         bool

	onSynthesizeShutdown ShutdownFunc
}

// New creates a Dispatcher writing responses/notifications on conn and
// routing requests through table.
func New(conn *jsonrpc2.Conn, table *HandlerTable, opts ...Option) *Dispatcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Dispatcher{
		conn:    conn,
		table:   table,
		logger:  o.logger,
		tracer:  o.tracer,
		pending: newPendingTable(),
	}
}

// OnSynthesizeShutdown registers a callback invoked once if the transport
// closes while the connection is still initialized.
func (d *Dispatcher) OnSynthesizeShutdown(fn ShutdownFunc) { d.onSynthesizeShutdown = fn }

// Attach wires emitter's callbacks to this dispatcher. Messages are
// handled inline on the emitter's read loop: lifecycle transitions and
// notifications are applied in arrival order, while each request's
// handler runs on its own goroutine so requests stay concurrent with
// respect to each other. Framing errors are logged, and a fatal close
// runs the transport-close policy.
func (d *Dispatcher) Attach(ctx context.Context, emitter *jsonrpc2.Emitter) {
	emitter.OnMessage(func(msg interface{}) {
		d.HandleMessage(ctx, msg)
	})
	emitter.OnError(func(err error) {
		d.logger.Warn("framing error, dropping frame", "error", err)
	})
	emitter.OnClose(func() {
		d.handleTransportClose(ctx)
	})
}

// HandleMessage filters response messages (this endpoint never issues
// requests of its own) and dispatches everything else to the
// request/notification handlers.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg interface{}) {
	switch m := msg.(type) {
	case *jsonrpc2.RequestMessage:
		d.handleRequest(ctx, m)
	case *jsonrpc2.NotificationMessage:
		d.handleNotification(ctx, m)
	case *jsonrpc2.ResponseMessage:
		d.logger.Debug("discarding response message, this endpoint is a server", "id", m.ID.String())
	default:
		d.logger.Warn("discarding message of unknown shape", "type", msg)
	}
}

func (d *Dispatcher) isStreamingCapable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamingCapable
}

// handleRequest applies lifecycle transitions for initialize/shutdown and
// looks up and invokes the registered handler for the method.
func (d *Dispatcher) handleRequest(ctx context.Context, req *jsonrpc2.RequestMessage) {
	method := req.Method

	switch method {
	case MethodInitialize:
		d.applyInitialize(req.Params)
	case MethodShutdown:
		d.mu.Lock()
		d.initialized = false
		d.mu.Unlock()
	}

	fn, ok := d.table.lookup(method)
	if !ok {
		d.sendResponse(ctx, req.ID, nil, jsonrpc2.NewErrorf(jsonrpc2.MethodNotFound, "method not found: %s", method))
		return
	}

	// The pending entry is registered before the handler goroutine starts,
	// so a $/cancelRequest arriving immediately after this request can
	// never miss it.
	reqCtx, cancel := context.WithCancel(ctx)
	d.pending.add(req.ID, cancel)
	go d.runRequest(reqCtx, cancel, req.ID, method, req.Meta, req.Params, fn)
}

// runRequest invokes fn, subscribes to its result stream, folds each
// item into an accumulator, optionally emits $/partialResult
// notifications as items arrive, and sends the final response.
func (d *Dispatcher) runRequest(reqCtx context.Context, cancel context.CancelFunc, id jsonrpc2.ID, method string, meta, params json.RawMessage, fn HandlerFunc) {
	defer cancel()

	spanCtx, span := startSpan(reqCtx, d.tracer, method, meta, params)

	value, err := fn(spanCtx, params)
	s := coerceStream(value, err)

	var accumulator any
	var streamErr error
	streaming := d.isStreamingCapable()

	for item := range s.C() {
		if item.Err != nil {
			streamErr = item.Err
			break
		}
		if streaming {
			d.emitPartialResult(spanCtx, id, item.Patch)
		}
		accumulator, streamErr = jsonpatch.Apply(accumulator, item.Patch)
		if streamErr != nil {
			break
		}
	}

	finishSpan(span, streamErr)

	// Claim the pending entry before writing anything: if it is already
	// gone, the cancel path (or exit/transport close) owns this id and
	// any result produced after that is discarded without touching the
	// wire, so each request id sees exactly one response.
	if !d.pending.remove(id) {
		return
	}

	if streamErr != nil {
		d.logger.Warn("handler error", "method", method, "id", id.String(), "error", streamErr)
		d.sendResponse(reqCtx, id, nil, toErrorObject(streamErr))
		return
	}

	d.sendResponse(reqCtx, id, accumulator, nil)
}

func toErrorObject(err error) *jsonrpc2.ErrorObject {
	if errObj, ok := err.(*jsonrpc2.ErrorObject); ok {
		return errObj
	}
	return jsonrpc2.NewError(jsonrpc2.UnknownError, err.Error())
}

func (d *Dispatcher) emitPartialResult(ctx context.Context, id jsonrpc2.ID, patch jsonpatch.Operation) {
	params := struct {
		ID    jsonrpc2.ID           `json:"id"`
		Patch []jsonpatch.Operation `json:"patch"`
	}{ID: id, Patch: []jsonpatch.Operation{patch}}

	if err := d.Notify(ctx, MethodPartialResult, params); err != nil {
		d.logger.Warn("failed to write partial result", "id", id.String(), "error", err)
	}
}

// handleNotification dispatches a notification to its handler, special-
// casing the lifecycle notifications that short-circuit the table lookup.
func (d *Dispatcher) handleNotification(ctx context.Context, ntf *jsonrpc2.NotificationMessage) {
	switch ntf.Method {
	case MethodExit:
		// exit is the transport's concern: it is never forwarded to the
		// backend, it cancels everything in flight, and it marks the
		// connection terminal so a later stream close does not also
		// synthesize a shutdown.
		d.mu.Lock()
		d.terminal = true
		d.initialized = false
		d.mu.Unlock()
		d.pending.cancelAll()
		return
	case MethodCancelRequest:
		d.handleCancelRequest(ctx, ntf.Params)
		return
	}

	fn, ok := d.table.lookup(ntf.Method)
	if !ok {
		d.logger.Warn("no handler for notification, dropping", "method", ntf.Method)
		return
	}

	spanCtx, span := startSpan(ctx, d.tracer, ntf.Method, ntf.Meta, ntf.Params)
	value, err := fn(spanCtx, ntf.Params)
	s := coerceStream(value, err)

	var streamErr error
	for item := range s.C() {
		if item.Err != nil {
			streamErr = item.Err
			break
		}
	}
	finishSpan(span, streamErr)
	if streamErr != nil {
		d.logger.Warn("notification handler error", "method", ntf.Method, "error", streamErr)
	}
}

// handleCancelRequest cancels the pending request named in params and
// replies with a RequestCancelled error for that id.
func (d *Dispatcher) handleCancelRequest(ctx context.Context, params json.RawMessage) {
	var p protocol.CancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		d.logger.Warn("malformed $/cancelRequest params", "error", err)
		return
	}

	if !d.pending.cancel(p.ID) {
		d.logger.Warn("$/cancelRequest for unknown or already-settled id", "id", p.ID.String())
		return
	}

	d.sendResponse(ctx, p.ID, nil, jsonrpc2.NewError(jsonrpc2.RequestCancelled, "request cancelled"))
}

// applyInitialize captures initialize-time lifecycle state.
func (d *Dispatcher) applyInitialize(params json.RawMessage) {
	var p protocol.InitializeParams
	_ = json.Unmarshal(params, &p)

	d.mu.Lock()
	d.initialized = true
	d.streamingCapable = p.Capabilities.Streaming
	d.mu.Unlock()
}

// handleTransportClose cancels all pending requests and, if the
// connection was still initialized, synthesizes a shutdown call.
func (d *Dispatcher) handleTransportClose(ctx context.Context) {
	d.mu.Lock()
	wasInitialized := d.initialized
	alreadyTerminal := d.terminal
	d.terminal = true
	d.initialized = false
	d.mu.Unlock()

	if alreadyTerminal {
		return
	}

	d.pending.cancelAll()

	if wasInitialized {
		d.logger.Warn("connection closed while initialized, synthesizing shutdown")
		if d.onSynthesizeShutdown != nil {
			d.onSynthesizeShutdown(ctx)
		}
	}
}

// sendResponse marshals and writes a JSON-RPC response. A nil respErr
// with a nil result is written as an explicit JSON null result, matching
// LSP expectations.
func (d *Dispatcher) sendResponse(ctx context.Context, id jsonrpc2.ID, result any, respErr *jsonrpc2.ErrorObject) {
	resp := &jsonrpc2.ResponseMessage{JSONRPC: jsonrpc2.Version, ID: id}

	switch {
	case respErr != nil:
		resp.Error = respErr
	case result != nil:
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = jsonrpc2.NewErrorf(jsonrpc2.InternalError, "marshal result: %v", err)
			break
		}
		resp.Result = raw
	default:
		resp.Result = json.RawMessage("null")
	}

	if err := d.conn.Write(ctx, resp); err != nil {
		d.logger.Warn("failed to write response", "id", id.String(), "error", err)
	}
}

// Notify writes a notification to the client, e.g. $/partialResult.
func (d *Dispatcher) Notify(ctx context.Context, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return d.conn.Write(ctx, &jsonrpc2.NotificationMessage{
		JSONRPC: jsonrpc2.Version,
		Method:  method,
		Params:  raw,
	})
}

// PendingEmpty reports whether the pending-request table is empty.
func (d *Dispatcher) PendingEmpty() bool { return d.pending.empty() }
