// Command lspgo-server runs the Master Router in front of a light and a
// heavy language-analysis backend, presenting a single JSON-RPC
// connection to the editor over stdio or TCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/akhenakh/lspgo-core/dispatch"
	"github.com/akhenakh/lspgo-core/jsonrpc2"
	"github.com/akhenakh/lspgo-core/router"
)

var (
	strict      bool
	address     string
	lightAddr   string
	heavyAddr   string
	traceToFile string
)

var rootCmd = &cobra.Command{
	Use:   "lspgo-server",
	Short: "Multiplex an LSP front connection across a light and heavy backend",
	Long: `lspgo-server presents one JSON-RPC connection to an editor and fans
each method out to two backend workers, light and heavy, according to
a per-method routing policy: parallel-both for lifecycle methods,
broadcast for document-sync notifications, first-success for
latency-sensitive queries, and heavy-only for long-running analysis.

The editor connection defaults to stdio; pass --address host:port to
listen on TCP instead. --light and --heavy are the worker addresses,
always TCP.`,
	RunE: runServer,
}

func init() {
	rootCmd.Flags().BoolVar(&strict, "strict", false, "route workspace/xfiles and textDocument/xcontent back to the front connection instead of assuming a shared local filesystem")
	rootCmd.Flags().StringVar(&address, "address", "", "listen on this TCP address for the front connection (default: stdio)")
	rootCmd.Flags().StringVar(&lightAddr, "light", "", "TCP address of the light backend worker")
	rootCmd.Flags().StringVar(&heavyAddr, "heavy", "", "TCP address of the heavy backend worker")
	rootCmd.Flags().StringVar(&traceToFile, "trace-file", "", "write trace spans as JSON to this file instead of stderr")
	_ = rootCmd.MarkFlagRequired("light")
	_ = rootCmd.MarkFlagRequired("heavy")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	lightConn, err := dialBackend(lightAddr)
	if err != nil {
		return fmt.Errorf("dial light backend: %w", err)
	}
	heavyConn, err := dialBackend(heavyAddr)
	if err != nil {
		return fmt.Errorf("dial heavy backend: %w", err)
	}

	lightClient := jsonrpc2.NewClient(lightConn)
	heavyClient := jsonrpc2.NewClient(heavyConn)
	go lightClient.Run(ctx)
	go heavyClient.Run(ctx)

	r := router.New(lightClient, heavyClient, router.WithLogger(logger))

	frontRW, closeFront, err := openFrontTransport(ctx, address)
	if err != nil {
		return fmt.Errorf("open front transport: %w", err)
	}
	defer closeFront()

	frontConn := jsonrpc2.NewConn(jsonrpc2.NewStream(frontRW))
	frontEmitter := jsonrpc2.NewEmitter(frontConn)
	frontClient := jsonrpc2.NewClientOnEmitter(frontConn, frontEmitter)

	table := dispatch.NewHandlerTable()
	r.Install(table)
	if strict {
		r.InstallReverseProxy(frontClient)
	}

	d := dispatch.New(frontConn, table, dispatch.WithLogger(logger))
	d.OnSynthesizeShutdown(func(ctx context.Context) {
		if err := r.Shutdown(ctx); err != nil {
			logger.Warn("synthesized shutdown failed", "error", err)
		}
	})
	d.Attach(ctx, frontEmitter)

	logger.Info("lspgo-server ready", "strict", strict, "light", lightAddr, "heavy", heavyAddr, "address", addressOrStdio(address))

	if err := frontEmitter.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("front connection closed: %w", err)
	}
	return nil
}

func addressOrStdio(addr string) string {
	if addr == "" {
		return "stdio"
	}
	return addr
}

func dialBackend(addr string) (*jsonrpc2.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return jsonrpc2.NewConn(jsonrpc2.NewStream(conn)), nil
}

// openFrontTransport returns the duplex byte stream the editor connects
// over: stdin/stdout when address is empty, or the first TCP connection
// accepted on address otherwise.
func openFrontTransport(ctx context.Context, addr string) (rw stdioReadWriteCloser, closeFn func(), err error) {
	if addr == "" {
		return stdioReadWriteCloser{}, func() {}, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return stdioReadWriteCloser{}, nil, err
	}
	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return stdioReadWriteCloser{}, nil, err
	}
	return stdioReadWriteCloser{r: conn, w: conn, c: conn}, func() {
		conn.Close()
		ln.Close()
	}, nil
}

// stdioReadWriteCloser adapts whichever concrete reader/writer/closer the
// front transport resolved to (stdin/stdout, or a TCP conn) into a single
// io.ReadWriteCloser that jsonrpc2.NewStream accepts.
type stdioReadWriteCloser struct {
	r interface{ Read([]byte) (int, error) }
	w interface{ Write([]byte) (int, error) }
	c interface{ Close() error }
}

func (s stdioReadWriteCloser) Read(p []byte) (int, error) {
	if s.r == nil {
		return os.Stdin.Read(p)
	}
	return s.r.Read(p)
}

func (s stdioReadWriteCloser) Write(p []byte) (int, error) {
	if s.w == nil {
		return os.Stdout.Write(p)
	}
	return s.w.Write(p)
}

func (s stdioReadWriteCloser) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// setupTracing installs a process-global TracerProvider exporting spans
// to stderr (or --trace-file), returning a shutdown func to flush on exit.
func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	out := os.Stderr
	if traceToFile != "" {
		f, err := os.Create(traceToFile)
		if err != nil {
			return nil, err
		}
		out = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
