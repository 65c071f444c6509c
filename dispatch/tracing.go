package dispatch

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/akhenakh/lspgo-core/internal/rpcid"
)

// startSpan extracts a span context from the message's meta field, if
// present (textmap format), and starts a child span named
// "Handle <method>"; otherwise it starts an orphan span tagged with a
// freshly minted correlation id so it is still attributable. params is
// attached as a tag either way.
func startSpan(ctx context.Context, tracer trace.Tracer, method string, meta, params json.RawMessage) (context.Context, trace.Span) {
	if hasContent(meta) {
		ctx = otel.GetTextMapPropagator().Extract(ctx, metaCarrier(meta))
	}

	spanCtx, span := tracer.Start(ctx, "Handle "+method)

	if !hasContent(meta) {
		span.SetAttributes(attribute.String("rpc.correlation_id", rpcid.New()))
	}
	if hasContent(params) {
		span.SetAttributes(attribute.String("rpc.params", string(params)))
	}
	return spanCtx, span
}

// finishSpan ends span, tagging it as errored when err is non-nil.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func hasContent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// metaCarrier adapts a JSON object's string-valued fields into a
// propagation.TextMapCarrier for extracting span context.
func metaCarrier(meta json.RawMessage) propagation.MapCarrier {
	var raw map[string]string
	_ = json.Unmarshal(meta, &raw) // malformed meta: extract finds nothing, span stays orphaned
	if raw == nil {
		raw = map[string]string{}
	}
	return propagation.MapCarrier(raw)
}
