package dispatch

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Dispatcher using the functional-option pattern.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
}

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/akhenakh/lspgo-core/dispatch"),
	}
}

// WithLogger sets the structured logger used by the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used to start per-request spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
