package tracing

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Events added to a request span as each awaited step completes.
const (
	EventConnected   = "connected"
	EventRequestSent = "request written"
	EventFramed      = "response framed"
)

const (
	attrTransport     = "nioload.transport"
	attrBodyBytes     = "nioload.body_bytes"
	attrStatusCode    = "http.response.status_code"
	attrServerAddress = "server.address"
	attrServerPort    = "server.port"
)

// StartRequestSpan starts a client span covering one open, write and frame cycle.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, transport, address string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String(attrTransport, transport)}
	if host, port, err := net.SplitHostPort(address); err == nil {
		attrs = append(attrs, attribute.String(attrServerAddress, host))
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, attribute.Int(attrServerPort, p))
		}
	} else {
		attrs = append(attrs, attribute.String(attrServerAddress, address))
	}
	return tracer.Start(ctx, transport+" request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

// Step records that one awaited step finished.
func Step(span trace.Span, event string) {
	span.AddEvent(event)
}

// RecordResponse attaches what the framer learned. A zero status code means
// the peer sent no status line and is left off the span.
func RecordResponse(span trace.Span, statusCode, bodyBytes int) {
	attrs := []attribute.KeyValue{attribute.Int(attrBodyBytes, bodyBytes)}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, statusCode))
	}
	span.SetAttributes(attrs...)
	span.AddEvent(EventFramed)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
