// Package router implements the Master Router: a façade registered on
// the front connection's handler table that fans each method out to two
// back-end connections, light and heavy, according to a per-method
// policy (parallel-both, broadcast, first-success, or heavy-only).
package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/akhenakh/lspgo-core/dispatch"
	"github.com/akhenakh/lspgo-core/jsonrpc2"
	"github.com/akhenakh/lspgo-core/protocol"
)

// broadcastNotifications are forwarded to both workers unconditionally;
// an editor's view of open buffers must stay in sync on both.
var broadcastNotifications = []string{
	protocol.MethodTextDocumentDidOpen,
	protocol.MethodTextDocumentDidChange,
	protocol.MethodTextDocumentDidSave,
	protocol.MethodTextDocumentDidClose,
}

// heavyOnlyMethods are long-running queries forwarded only to heavy, the
// worker provisioned for full-workspace analysis.
var heavyOnlyMethods = []string{
	protocol.MethodWorkspaceSymbol,
	protocol.MethodTextDocumentDocumentSymbol,
	protocol.MethodWorkspaceXReferences,
	protocol.MethodTextDocumentReferences,
	protocol.MethodTextDocumentCompletion,
	protocol.MethodWorkspaceXDependencies,
	protocol.MethodWorkspaceXPackages,
	protocol.MethodTextDocumentXDefinition,
	protocol.MethodTextDocumentGlobalRefs,
}

// firstSuccessMethods race both workers and return whichever answers
// first, hiding the latency of whichever worker is momentarily blocked
// on a long compile or index rebuild.
var firstSuccessMethods = []string{
	protocol.MethodTextDocumentDefinition,
	protocol.MethodTextDocumentHover,
}

// reverseProxyMethods are requests a worker sends back toward the front
// connection, e.g. asking for the content of a file the front editor
// has open but the worker does not have on disk.
var reverseProxyMethods = []string{
	protocol.MethodWorkspaceXFiles,
	protocol.MethodTextDocumentXContent,
}

// Router holds the two back-end connections a front connection is
// multiplexed across.
type Router struct {
	light  *jsonrpc2.Client
	heavy  *jsonrpc2.Client
	logger *slog.Logger
}

// New creates a Router over the given light and heavy back-end clients.
func New(light, heavy *jsonrpc2.Client, opts ...Option) *Router {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Router{light: light, heavy: heavy, logger: o.logger}
}

// Shutdown runs the same parallel-shutdown-then-broadcast-exit policy as
// the shutdown request handler. It lets a front Dispatcher synthesize a
// shutdown when the editor connection closes without sending one.
func (r *Router) Shutdown(ctx context.Context) error {
	_, err := r.handleShutdown(ctx, nil)
	return err
}

// Install registers this router's policies into table, so that a
// Dispatcher serving the front connection routes through to light/heavy
// instead of calling a local handler directly.
func (r *Router) Install(table *dispatch.HandlerTable) {
	table.Register(protocol.MethodInitialize, r.handleInitialize)
	table.Register(protocol.MethodShutdown, r.handleShutdown)

	for _, method := range broadcastNotifications {
		table.Register(method, r.broadcastHandler(method))
	}
	for _, method := range firstSuccessMethods {
		table.Register(method, r.firstSuccessHandler(method))
	}
	for _, method := range heavyOnlyMethods {
		table.Register(method, r.heavyOnlyHandler(method))
	}
}

// InstallReverseProxy registers, on both back-end connections, handlers
// for the requests a worker addresses back at the front connection;
// each is serviced by calling through to front.
func (r *Router) InstallReverseProxy(front *jsonrpc2.Client) {
	for _, method := range reverseProxyMethods {
		m := method
		handler := func(ctx context.Context, params json.RawMessage) (any, error) {
			return front.Call(ctx, m, params)
		}
		r.light.OnRequest(m, handler)
		r.heavy.OnRequest(m, handler)
	}
}

// handleInitialize sends initialize to both workers in parallel,
// returns light's response, and only logs heavy's outcome: the front
// connection's capabilities are whatever the light worker advertises.
func (r *Router) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var lightResult json.RawMessage
	var lightErr, heavyErr error

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		lightResult, lightErr = r.light.Call(gctx, protocol.MethodInitialize, params)
		return nil
	})
	g.Go(func() error {
		_, heavyErr = r.heavy.Call(gctx, protocol.MethodInitialize, params)
		return nil
	})
	_ = g.Wait()

	if heavyErr != nil {
		r.logger.Warn("heavy worker failed to initialize", "error", heavyErr)
	}
	if lightErr != nil {
		return nil, lightErr
	}
	return lightResult, nil
}

// handleShutdown sends shutdown to both workers in parallel, waits for
// both to acknowledge, then broadcasts exit.
func (r *Router) handleShutdown(ctx context.Context, params json.RawMessage) (any, error) {
	var lightErr, heavyErr error

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		_, lightErr = r.light.Call(gctx, protocol.MethodShutdown, params)
		return nil
	})
	g.Go(func() error {
		_, heavyErr = r.heavy.Call(gctx, protocol.MethodShutdown, params)
		return nil
	})
	_ = g.Wait()

	if lightErr != nil {
		r.logger.Warn("light worker failed to shut down", "error", lightErr)
	}
	if heavyErr != nil {
		r.logger.Warn("heavy worker failed to shut down", "error", heavyErr)
	}

	if err := r.light.Notify(context.Background(), protocol.MethodExit, nil); err != nil {
		r.logger.Warn("failed to notify light worker of exit", "error", err)
	}
	if err := r.heavy.Notify(context.Background(), protocol.MethodExit, nil); err != nil {
		r.logger.Warn("failed to notify heavy worker of exit", "error", err)
	}

	return nil, nil
}

// broadcastHandler forwards a notification to both workers.
func (r *Router) broadcastHandler(method string) dispatch.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		if err := r.light.Notify(ctx, method, params); err != nil {
			r.logger.Warn("broadcast to light failed", "method", method, "error", err)
		}
		if err := r.heavy.Notify(ctx, method, params); err != nil {
			r.logger.Warn("broadcast to heavy failed", "method", method, "error", err)
		}
		return nil, nil
	}
}

// heavyOnlyHandler forwards a request to the heavy worker only.
func (r *Router) heavyOnlyHandler(method string) dispatch.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		return r.heavy.Call(ctx, method, params)
	}
}

// firstSuccessHandler races light and heavy and returns whichever
// succeeds first. Neither loser is cancelled: both handlers keep running
// to completion on their respective workers regardless of which one the
// front connection ends up replying with. This is a deliberate routing
// choice, not a resource-bounded one, preserved as-is rather than
// "improved" into a cancel-the-loser design.
func (r *Router) firstSuccessHandler(method string) dispatch.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		return firstSuccess(ctx, []func(context.Context) (json.RawMessage, error){
			func(c context.Context) (json.RawMessage, error) { return r.light.Call(c, method, params) },
			func(c context.Context) (json.RawMessage, error) { return r.heavy.Call(c, method, params) },
		})
	}
}

// firstSuccess runs every call concurrently, resolving with the first
// successful result. It rejects only once every call has failed,
// returning the last error observed.
func firstSuccess(ctx context.Context, calls []func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	type outcome struct {
		result json.RawMessage
		err    error
	}
	results := make(chan outcome, len(calls))
	for _, call := range calls {
		call := call
		go func() {
			result, err := call(ctx)
			results <- outcome{result: result, err: err}
		}()
	}

	var lastErr error
	for i := 0; i < len(calls); i++ {
		o := <-results
		if o.err == nil {
			return o.result, nil
		}
		lastErr = o.err
	}
	return nil, lastErr
}
